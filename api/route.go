package api

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v3"

	"haruki-cutscenes/config"
	"haruki-cutscenes/updater"
	"haruki-cutscenes/utils"
	"haruki-cutscenes/utils/exporter"
	"haruki-cutscenes/utils/keys"
	harukiLogger "haruki-cutscenes/utils/logger"
)

var logger = harukiLogger.NewLogger("HarukiCutscenesAPI", "INFO", nil)

// ExportPayload is the body of /demux and /convert_hca.
type ExportPayload struct {
	Path        string `json:"path"`
	Key         string `json:"key,omitempty"`
	KeyA        string `json:"a,omitempty"`
	KeyB        string `json:"b,omitempty"`
	OutputDir   string `json:"output_dir,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
	Merge       *bool  `json:"merge,omitempty"`
	Async       bool   `json:"async,omitempty"`
}

type Server struct {
	cfg      *config.Config
	record   *exporter.Record
	uploader exporter.Uploader
	update   func() (*keys.Table, error)

	mu    sync.RWMutex
	table *keys.Table
}

func NewServer(cfg *config.Config, table *keys.Table, record *exporter.Record, uploader exporter.Uploader) *Server {
	return &Server{
		cfg:      cfg,
		table:    table,
		record:   record,
		uploader: uploader,
		update:   updater.NewKeyTableUpdater(context.Background(), cfg.KeyTable, cfg.Proxy).Update,
	}
}

// NewApp creates the fiber app with sonic as its JSON codec.
func NewApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		BodyLimit:   cfg.Backend.BodyLimit,
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
	})
}

func (s *Server) Table() *keys.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

func (s *Server) SetTable(t *keys.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use(s.authorize)
	app.Post("/demux", s.demuxHandler)
	app.Post("/convert_hca", s.convertHCAHandler)
	app.Post("/update_keys", s.updateKeysHandler)
	app.Get("/key/:name", s.keyHandler)
}

func (s *Server) authorize(c fiber.Ctx) error {
	backend := s.cfg.Backend
	if !backend.EnableAuthorization {
		return c.Next()
	}
	if backend.AcceptUserAgentPrefix != "" {
		userAgent := c.Get("User-Agent")
		if !strings.HasPrefix(userAgent, backend.AcceptUserAgentPrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid User-Agent",
			})
		}
	}
	if backend.AcceptAuthorizationToken != "" {
		authHeader := c.Get("Authorization")
		expectedAuth := "Bearer " + backend.AcceptAuthorizationToken
		if authHeader != expectedAuth {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid authorization token",
			})
		}
	}
	return c.Next()
}

func overrideKey(p ExportPayload) (*keys.Key, error) {
	switch {
	case p.Key != "":
		k, err := keys.ParseKey(p.Key)
		if err != nil {
			return nil, err
		}
		return &k, nil
	case p.KeyA != "" || p.KeyB != "":
		k, err := keys.FromHalves(p.KeyA, p.KeyB)
		if err != nil {
			return nil, err
		}
		return &k, nil
	}
	return nil, nil
}

func (s *Server) pipeline(p ExportPayload, override *keys.Key) *exporter.Pipeline {
	opts := exporter.OptionsFromConfig(s.cfg)
	if p.OutputDir != "" {
		opts.OutputDir = p.OutputDir
	}
	if p.AudioFormat != "" {
		opts.AudioFormat = p.AudioFormat
	}
	if p.Merge != nil {
		opts.Merge = *p.Merge
	}
	return &exporter.Pipeline{
		Options:           opts,
		Keys:              exporter.KeySource{Table: s.Table(), Override: override},
		Record:            s.record,
		Uploader:          s.uploader,
		RemoveAfterUpload: s.cfg.Demux.RemoveAfterUpload,
		Concurrency:       s.cfg.Demux.Concurrency,
	}
}

func badRequest(c fiber.Ctx, message string, err error) error {
	body := fiber.Map{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func reportsJSON(reports []exporter.Report) []fiber.Map {
	out := make([]fiber.Map, 0, len(reports))
	for _, r := range reports {
		m := fiber.Map{"file": r.File, "ok": r.OK()}
		if r.Skipped {
			m["skipped"] = true
		}
		if !r.OK() {
			m["kind"] = r.Kind
			m["error"] = r.Message()
		}
		out = append(out, m)
	}
	return out
}

// runExport parses the payload, expands the input path and runs fn over
// the matching files.
func (s *Server) runExport(c fiber.Ctx, ext string, fn func(p *exporter.Pipeline, ctx context.Context, files []string) []exporter.Report) error {
	var payload ExportPayload
	if err := c.Bind().Body(&payload); err != nil {
		return badRequest(c, "Invalid request payload", err)
	}
	if payload.Path == "" {
		return badRequest(c, "Missing path", nil)
	}
	if !exporter.ValidAudioFormat(payload.AudioFormat) {
		return badRequest(c, "Invalid audio format", nil)
	}
	override, err := overrideKey(payload)
	if err != nil {
		return badRequest(c, "Invalid key", err)
	}
	files, err := utils.ExpandInputs(payload.Path, ext)
	if err != nil {
		return badRequest(c, "Invalid path", err)
	}
	if len(files) == 0 {
		return badRequest(c, "No "+ext+" files found", nil)
	}

	p := s.pipeline(payload, override)
	if payload.Async {
		go func() {
			reports := fn(p, context.Background(), files)
			logger.Infof("Background export of %s finished, %d failed", payload.Path, len(exporter.Failed(reports)))
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Export started running",
			"files":   len(files),
		})
	}
	reports := fn(p, context.Background(), files)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Export finished",
		"failed":  len(exporter.Failed(reports)),
		"reports": reportsJSON(reports),
	})
}

func (s *Server) demuxHandler(c fiber.Ctx) error {
	return s.runExport(c, ".usm", (*exporter.Pipeline).ExportContainers)
}

func (s *Server) convertHCAHandler(c fiber.Ctx) error {
	return s.runExport(c, ".hca", (*exporter.Pipeline).ExportHCAFiles)
}

func (s *Server) updateKeysHandler(c fiber.Ctx) error {
	table, err := s.update()
	if err != nil {
		logger.Errorf("Failed to update key table: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Failed to update key table",
			"error":   err.Error(),
		})
	}
	s.SetTable(table)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Key table updated",
		"videos":  table.Len(),
	})
}

func (s *Server) keyHandler(c fiber.Ctx) error {
	name := c.Params("name")
	key, encAudio, err := keys.Derive(name, s.Table())
	switch {
	case errors.Is(err, keys.ErrKeyNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "No key for this file",
			"file":    name,
		})
	case err != nil:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Key table unavailable",
			"error":   err.Error(),
		})
	}
	key1, key2 := key.Split()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"file":      name,
		"key":       key.String(),
		"key1":      key1,
		"key2":      key2,
		"enc_audio": encAudio,
	})
}
