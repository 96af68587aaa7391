package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/ports"
	"github.com/acim-association/members-dashboard/internal/infrastructure/spreadsheet"
)

const streamKeepAlive = 25 * time.Second

// MemberHandler handles HTTP requests for the member directory.
type MemberHandler struct {
	service        ports.MemberService
	audit          *audit.Logger
	maxImportBytes int64
	log            zerolog.Logger
}

func NewMemberHandler(service ports.MemberService, auditLog *audit.Logger, maxImportBytes int64, log zerolog.Logger) *MemberHandler {
	return &MemberHandler{
		service:        service,
		audit:          auditLog,
		maxImportBytes: maxImportBytes,
		log:            log.With().Str("component", "member_handler").Logger(),
	}
}

// List handles GET /v1/members.
//
// @Summary      List members
// @Description  Members ordered by name. q keeps members whose name, email or phone contains it, ignoring case.
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  false  "Search term"
// @Success      200  {object}  listMembersResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/members [get]
func (h *MemberHandler) List(c echo.Context) error {
	records, err := h.service.List(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListMembersResponse(records))
}

// Create handles POST /v1/members.
//
// @Summary      Add a member
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createMemberRequest  true  "Member"
// @Success      201   {object}  memberResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/members [post]
func (h *MemberHandler) Create(c echo.Context) error {
	var req createMemberRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	rec, err := h.service.Add(c.Request().Context(), toAddMemberInput(req))
	if err != nil {
		return err
	}
	if h.audit != nil {
		h.audit.MemberAdded(actor(c), rec)
	}
	return c.JSON(http.StatusCreated, toMemberResponse(*rec))
}

// Delete handles DELETE /v1/members/:id.
//
// @Summary      Delete a member
// @Tags         members
// @Security     BearerAuth
// @Param        id   path  string  true  "Member id"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/members/{id} [delete]
func (h *MemberHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	if h.audit != nil {
		h.audit.MemberDeleted(actor(c), id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Import handles POST /v1/members/import.
//
// @Summary      Import members from a spreadsheet
// @Description  First sheet, header row Nom, Email, Téléphone, Adresse, Statut, Rôle, Doc, Memo. Existing emails are skipped. A write error stops the import; rows already written are kept.
// @Tags         members
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "xlsx file"
// @Success      200   {object}  importResponse
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      500   {object}  importResponse
// @Router       /v1/members/import [post]
func (h *MemberHandler) Import(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "file is required"})
	}
	if h.maxImportBytes > 0 && fh.Size > h.maxImportBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	res, err := h.service.Import(c.Request().Context(), f)
	if h.audit != nil && (res != nil || err == nil) {
		imported, skipped := 0, 0
		if res != nil {
			imported, skipped = res.Imported, len(res.Skipped)
		}
		h.audit.MembersImported(actor(c), imported, skipped, err)
	}
	if err != nil {
		if res == nil {
			return err
		}
		h.log.Error().Err(err).Int("imported", res.Imported).Msg("import interrupted")
		body := toImportResponse(res)
		body.Error = "import interrupted"
		return c.JSON(http.StatusInternalServerError, body)
	}
	return c.JSON(http.StatusOK, toImportResponse(res))
}

// Export handles GET /v1/members/export.
//
// @Summary      Export members as a spreadsheet
// @Tags         members
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        q    query  string  false  "Search term, same as the list"
// @Success      200  {file}  binary
// @Router       /v1/members/export [get]
func (h *MemberHandler) Export(c echo.Context) error {
	data, err := h.service.Export(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", spreadsheet.ExportFileName))
	return c.Blob(http.StatusOK, spreadsheet.ContentType, data)
}

// Stream handles GET /v1/members/stream.
//
// @Summary      Live member list
// @Description  Server-Sent Events. A "members" event carrying the ordered, filtered list is sent on connect and after every change.
// @Tags         members
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        q    query  string  false  "Search term"
// @Success      200  {object}  listMembersResponse
// @Router       /v1/members/stream [get]
func (h *MemberHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	changes, stop, err := h.service.Watch(ctx)
	if err != nil {
		return err
	}
	defer stop()

	search := c.QueryParam("q")
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.sendList(c, search); err != nil {
		return nil
	}

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := h.sendList(c, search); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (h *MemberHandler) sendList(c echo.Context, search string) error {
	records, err := h.service.List(c.Request().Context(), search)
	if err != nil {
		if !errors.Is(err, c.Request().Context().Err()) {
			h.log.Warn().Err(err).Msg("stream: failed to load members")
		}
		return err
	}
	payload, err := json.Marshal(toListMembersResponse(records))
	if err != nil {
		return err
	}
	w := c.Response()
	if _, err := fmt.Fprintf(w, "event: members\ndata: %s\n\n", payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
