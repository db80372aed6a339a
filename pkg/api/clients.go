package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/pager"
	"github.com/harveywai/leasedesk/pkg/validate"
)

var matchClient = pager.ContainsFold(
	func(c database.Client) string { return c.Name },
	func(c database.Client) string { return c.Email },
	func(c database.Client) string { return c.Contact },
	func(c database.Client) string { return c.CompanyName },
)

func (h *Handler) handleListClients(c *gin.Context) {
	clients, err := h.store.ListClients(c.Request.Context())
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	page, meta, ok := paginate(c, clients, matchClient, h.pageSizes)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"clients":    page.Items,
		"pagination": meta,
		"count_text": pager.CountText(meta.TotalEntries, "Client"),
	})
}

type clientName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleClientNames feeds the client picker of the domain forms.
func (h *Handler) handleClientNames(c *gin.Context) {
	clients, err := h.store.ListClients(c.Request.Context())
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	names := make([]clientName, 0, len(clients))
	for _, cl := range clients {
		names = append(names, clientName{ID: cl.ID, Name: cl.Name})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clients": names})
}

func (h *Handler) handleAddClient(c *gin.Context) {
	var in validate.ClientInput
	if !bindJSON(c, &in) {
		return
	}
	client, err := in.Client()
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	if err := h.store.CreateClient(c.Request.Context(), &client); err != nil {
		h.fail(c, err, "client")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Client added successfully",
		"client":  client,
	})
}

func (h *Handler) handleGetClient(c *gin.Context) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "client": client})
}

func (h *Handler) handleUpdateClient(c *gin.Context) {
	var in validate.ClientInput
	if !bindJSON(c, &in) {
		return
	}
	fields, err := in.Client()
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	client, err := h.store.UpdateClient(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Client updated successfully",
		"client":  client,
	})
}

func (h *Handler) handleDeleteClient(c *gin.Context) {
	if err := h.store.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Client deleted successfully"})
}
