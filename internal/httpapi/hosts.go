package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bmetallica/netcatalog/internal/classify"
	"github.com/bmetallica/netcatalog/internal/store"
)

// HostsHandler exposes read access to discovered hosts and services,
// plus the operator-facing deviceType override and host deletion.
type HostsHandler struct {
	store *store.Store
}

func NewHostsHandler(st *store.Store) *HostsHandler {
	return &HostsHandler{store: st}
}

func (h *HostsHandler) RegisterRoutes(api fiber.Router) {
	hosts := api.Group("/hosts")
	hosts.Get("/", h.ListHosts)
	hosts.Get("/:id", h.GetHost)
	hosts.Get("/:id/services", h.ListServices)
	hosts.Patch("/:id", h.UpdateDeviceType)
	hosts.Delete("/:id", h.DeleteHost)
}

// hostResponse's DeviceType shadows the embedded Host.DeviceType (the raw
// manual override column) with the classifier's resolved verdict, which
// already returns the manual value as-is when one is set.
type hostResponse struct {
	store.Host
	DeviceType       string `json:"device_type"`
	ClassifierReason string `json:"classifier_reason,omitempty"`
	Confidence       int    `json:"classifier_confidence,omitempty"`
}

// ListHosts handles GET /api/v1/hosts.
func (h *HostsHandler) ListHosts(c *fiber.Ctx) error {
	hosts, err := h.store.ListHosts()
	if err != nil {
		return HandleError(c, 500, err, "failed to list hosts")
	}

	out := make([]hostResponse, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, h.classify(host))
	}
	return c.JSON(out)
}

// GetHost handles GET /api/v1/hosts/:id.
func (h *HostsHandler) GetHost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	host, err := h.store.GetHost(id)
	if err != nil {
		return HandleError(c, 500, err, "failed to load host")
	}
	if host == nil {
		return c.Status(404).JSON(ErrorResponse{Error: "host not found"})
	}
	return c.JSON(h.classify(*host))
}

// ListServices handles GET /api/v1/hosts/:id/services.
func (h *HostsHandler) ListServices(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	services, err := h.store.ListServices(id)
	if err != nil {
		return HandleError(c, 500, err, "failed to list services")
	}
	return c.JSON(services)
}

type updateDeviceTypeRequest struct {
	DeviceType string `json:"device_type"`
}

// UpdateDeviceType handles PATCH /api/v1/hosts/:id, setting the
// operator-forced device type override (empty string reverts to the
// classifier's own guess).
func (h *HostsHandler) UpdateDeviceType(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	var req updateDeviceTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := h.store.SetDeviceType(id, strings.TrimSpace(req.DeviceType)); err != nil {
		return HandleError(c, 500, err, "failed to update device type")
	}
	return c.SendStatus(204)
}

// DeleteHost handles DELETE /api/v1/hosts/:id.
func (h *HostsHandler) DeleteHost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	if err := h.store.DeleteHost(id); err != nil {
		return HandleError(c, 500, err, "failed to delete host")
	}
	return c.SendStatus(204)
}

func (h *HostsHandler) classify(host store.Host) hostResponse {
	services, _ := h.store.ListServices(host.ID)
	openPorts := make(map[int]bool, len(services))
	portProduct := make(map[int]string, len(services))
	for _, s := range services {
		openPorts[s.Port] = true
		portProduct[s.Port] = s.Product
	}

	verdict := classify.Classify(classify.Input{
		ManualDeviceType: host.DeviceType,
		MAC:              host.MAC,
		OSGuess:          host.OSGuess,
		Vendor:           host.Vendor,
		OpenPorts:        openPorts,
		PortProduct:      portProduct,
		IsWindows:        strings.Contains(strings.ToLower(host.OSGuess), "windows"),
	})

	return hostResponse{
		Host:             host,
		DeviceType:       verdict.DeviceType,
		ClassifierReason: verdict.Reason,
		Confidence:       verdict.Confidence,
	}
}
