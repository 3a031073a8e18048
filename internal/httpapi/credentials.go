package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bmetallica/netcatalog/internal/secrets"
	"github.com/bmetallica/netcatalog/internal/store"
)

// CredentialsHandler writes integration credentials for a host. The
// secret half (token secret / password) never touches the hosts row or
// a log line — only its secrets.Ref does.
type CredentialsHandler struct {
	store   *store.Store
	secrets *secrets.Store
}

func NewCredentialsHandler(st *store.Store, sec *secrets.Store) *CredentialsHandler {
	return &CredentialsHandler{store: st, secrets: sec}
}

func (h *CredentialsHandler) RegisterRoutes(api fiber.Router) {
	hosts := api.Group("/hosts/:id")
	hosts.Put("/credentials/proxmox", h.SetProxmox)
	hosts.Put("/credentials/fritzbox", h.SetFritzBox)
	api.Put("/integrations/uisp", h.SetUISP)
}

type proxmoxCredentialsRequest struct {
	APIHost     string `json:"api_host"`
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
}

// SetProxmox handles PUT /api/v1/hosts/:id/credentials/proxmox.
func (h *CredentialsHandler) SetProxmox(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	var req proxmoxCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.APIHost == "" || req.TokenID == "" || req.TokenSecret == "" {
		return c.Status(400).JSON(ErrorResponse{Error: "api_host, token_id, and token_secret are required"})
	}

	ref, err := h.secrets.Put("proxmox-"+id.String(), req.TokenSecret)
	if err != nil {
		return HandleError(c, 500, err, "failed to store credential")
	}
	if err := h.store.SetProxmoxCredentials(id, req.APIHost, req.TokenID, string(ref)); err != nil {
		return HandleError(c, 500, err, "failed to save host credentials")
	}
	return c.SendStatus(204)
}

type fritzBoxCredentialsRequest struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SetFritzBox handles PUT /api/v1/hosts/:id/credentials/fritzbox.
func (h *CredentialsHandler) SetFritzBox(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid host id"})
	}
	var req fritzBoxCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Host == "" || req.Username == "" || req.Password == "" {
		return c.Status(400).JSON(ErrorResponse{Error: "host, username, and password are required"})
	}

	ref, err := h.secrets.Put("fritzbox-"+id.String(), req.Password)
	if err != nil {
		return HandleError(c, 500, err, "failed to store credential")
	}
	if err := h.store.SetFritzBoxCredentials(id, req.Host, req.Username, string(ref)); err != nil {
		return HandleError(c, 500, err, "failed to save host credentials")
	}
	return c.SendStatus(204)
}

type uispCredentialsRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// SetUISP handles PUT /api/v1/integrations/uisp. UISP is a single
// site-wide controller rather than a per-host credential, so it lives
// in the settings table instead of on a host row.
func (h *CredentialsHandler) SetUISP(c *fiber.Ctx) error {
	var req uispCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.URL == "" || req.Token == "" {
		return c.Status(400).JSON(ErrorResponse{Error: "url and token are required"})
	}

	ref, err := h.secrets.Put("uisp", req.Token)
	if err != nil {
		return HandleError(c, 500, err, "failed to store credential")
	}
	if err := h.store.WriteSettings(map[string]string{"unifi_url": req.URL, "unifi_secret_ref": string(ref)}); err != nil {
		return HandleError(c, 400, err, "invalid settings")
	}
	return c.SendStatus(204)
}
