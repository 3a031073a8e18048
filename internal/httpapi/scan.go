package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bmetallica/netcatalog/internal/portscan"
	"github.com/bmetallica/netcatalog/internal/scanengine"
)

// ScanHandler exposes manual triggers for the scan and deep-discovery
// pipelines, mirroring the scheduler's own calls into Engine.
type ScanHandler struct {
	engine *scanengine.Engine
}

func NewScanHandler(eng *scanengine.Engine) *ScanHandler {
	return &ScanHandler{engine: eng}
}

func (h *ScanHandler) RegisterRoutes(api fiber.Router) {
	api.Post("/scan", h.StartScan)
	api.Post("/discovery", h.StartDiscovery)
	api.Get("/network/detect", h.DetectNetwork)
}

// StartScan handles POST /api/v1/scan. It runs synchronously and returns
// once the pipeline completes, since the engine's own singleton guard
// already prevents overlap and the caller gets the finished scan row.
func (h *ScanHandler) StartScan(c *fiber.Ctx) error {
	scan, err := h.engine.RunScan(c.Context())
	if err != nil && scan == nil {
		return HandleError(c, 500, err, "failed to start scan")
	}
	return c.Status(202).JSON(scan)
}

// StartDiscovery handles POST /api/v1/discovery.
func (h *ScanHandler) StartDiscovery(c *fiber.Ctx) error {
	if err := h.engine.RunDeepDiscoveryStandalone(c.Context(), logger()); err != nil {
		return HandleError(c, 500, err, "failed to start deep discovery")
	}
	return c.SendStatus(202)
}

// DetectNetwork handles GET /api/v1/network/detect.
func (h *ScanHandler) DetectNetwork(c *fiber.Ctx) error {
	cidr, err := portscan.DetectLocalNetwork()
	if err != nil {
		return HandleError(c, 400, err, "could not detect local network")
	}
	return c.JSON(fiber.Map{"cidr": cidr})
}
