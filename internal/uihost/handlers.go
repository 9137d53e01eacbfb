package uihost

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"raharpa/internal/api"
	"raharpa/internal/app"
	"raharpa/internal/models"
	"raharpa/internal/session"
)

// envelope mirrors the backend's response contract so the UI reads one shape
// end to end.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeData(res http.ResponseWriter, data any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(res).Encode(envelope{Success: true, Data: data}); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(res http.ResponseWriter, status int, message string) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(envelope{Success: false, Message: message}); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

// writeFailure maps a typed failure from the resource clients onto an HTTP
// status the UI can branch on.
func writeFailure(res http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrLoginInFlight) {
		writeError(res, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, session.ErrNotLoggedIn) {
		writeError(res, http.StatusUnauthorized, err.Error())
		return
	}

	failure, ok := api.AsFailure(err)
	if !ok {
		writeError(res, http.StatusInternalServerError, err.Error())
		return
	}
	switch failure.Kind {
	case api.KindValidation:
		writeError(res, http.StatusBadRequest, failure.Message)
	case api.KindTimeout:
		writeError(res, http.StatusGatewayTimeout, failure.Message)
	case api.KindHTTP:
		status := failure.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeError(res, status, failure.Message)
	default:
		writeError(res, http.StatusBadGateway, failure.Message)
	}
}

func readJSON(req *http.Request, dst any) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// withActivity treats every UI request as user activity, sliding the session
// windows forward.
func (s *Server) withActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		s.app.Touch()
		next.ServeHTTP(res, req)
	})
}

// sessionState reports which sessions are live; the UI uses it to decide
// between the login form and a restored surface.
func (s *Server) sessionState(res http.ResponseWriter, req *http.Request) {
	writeData(res, map[string]any{
		"user":  s.app.UserSession().Current(),
		"admin": s.app.AdminSession().Current(),
	})
}

func (s *Server) userLogin(res http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" {
		writeError(res, http.StatusBadRequest, "name is required")
		return
	}

	sess, err := s.app.LoginUser(req.Context(), body.Name)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, sess)
}

func (s *Server) userLogout(res http.ResponseWriter, req *http.Request) {
	if err := s.app.LogoutUser(req.Context()); err != nil {
		// Local state is already cleared; report the backend hiccup but
		// let the UI proceed to the login form.
		s.log.Sugar().Warnf("Backend logout failed: %s", err)
	}
	writeData(res, map[string]bool{"loggedOut": true})
}

func (s *Server) adminLogin(res http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(res, http.StatusBadRequest, "username and password are required")
		return
	}

	sess, err := s.app.LoginAdmin(req.Context(), body.Username, body.Password)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, sess)
}

func (s *Server) adminLogout(res http.ResponseWriter, req *http.Request) {
	if err := s.app.LogoutAdmin(req.Context()); err != nil {
		s.log.Sugar().Warnf("Backend logout failed: %s", err)
	}
	writeData(res, map[string]bool{"loggedOut": true})
}

func (s *Server) adminProfile(res http.ResponseWriter, req *http.Request) {
	profile, err := s.app.AdminProfile(req.Context())
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, profile)
}

func (s *Server) adminProfileUpdate(res http.ResponseWriter, req *http.Request) {
	var profile models.AdminProfile
	if err := readJSON(req, &profile); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.app.UpdateAdminProfile(req.Context(), profile)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, updated)
}

// adminSurface fetches the mounted admin views or answers 401.
func (s *Server) adminSurface(res http.ResponseWriter) *app.AdminViews {
	av := s.app.AdminViews()
	if av == nil {
		writeError(res, http.StatusUnauthorized, "admin is not logged in")
	}
	return av
}

func (s *Server) dashboardSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if date := req.URL.Query().Get("date"); date != "" {
		av.Dashboard.SetDate(req.Context(), date)
	}
	writeData(res, av.Dashboard.Snapshot())
}

func (s *Server) itemsSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if status, ok := req.URL.Query()["status"]; ok {
		av.Items.SetFilter(models.ItemStatus(strings.Join(status, "")))
	}
	writeData(res, av.Items.Snapshot())
}

func (s *Server) itemCreate(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	item, image, err := parseItemRequest(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	created, err := av.Items.Create(req.Context(), item, image)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, created)
}

func (s *Server) itemUpdate(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	var item models.Item
	if err := readJSON(req, &item); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := av.Items.Update(req.Context(), chi.URLParam(req, "itemID"), item)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, updated)
}

func (s *Server) itemRemove(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if err := av.Items.Remove(req.Context(), chi.URLParam(req, "itemID")); err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]bool{"deleted": true})
}

func (s *Server) itemSend(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	var body struct {
		UserID string `json:"userId"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if body.UserID == "" {
		writeError(res, http.StatusBadRequest, "userId is required")
		return
	}

	sent, err := av.Items.Send(req.Context(), chi.URLParam(req, "itemID"), body.UserID)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, sent)
}

func (s *Server) ordersSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if status, ok := req.URL.Query()["status"]; ok {
		av.Orders.SetFilter(models.OrderStatus(strings.Join(status, "")))
	}
	writeData(res, av.Orders.Snapshot())
}

func (s *Server) orderCreate(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	var order models.Order
	if err := readJSON(req, &order); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	created, err := av.Orders.Create(req.Context(), order)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, created)
}

func (s *Server) orderUpdateStatus(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	var body struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if body.Status == "" {
		writeError(res, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := av.Orders.UpdateStatus(req.Context(), chi.URLParam(req, "orderID"), body.Status)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, updated)
}

func (s *Server) orderRemove(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if err := av.Orders.Remove(req.Context(), chi.URLParam(req, "orderID")); err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]bool{"deleted": true})
}

func (s *Server) usersSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	writeData(res, av.Users.Snapshot())
}

func (s *Server) userOrders(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	orders, err := av.Orders.ForUser(req.Context(), chi.URLParam(req, "userID"))
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, orders)
}

func (s *Server) userForceLogin(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	user, err := av.Users.ForceLogin(req.Context(), chi.URLParam(req, "userID"))
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, user)
}

func (s *Server) userRemove(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if err := av.Users.Remove(req.Context(), chi.URLParam(req, "userID")); err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]bool{"deleted": true})
}

func (s *Server) reportsSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	if month := req.URL.Query().Get("month"); month != "" {
		av.Reports.SetMonth(req.Context(), month)
	}
	writeData(res, av.Reports.Snapshot())
}

func (s *Server) adminChatSnapshot(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	writeData(res, av.Chat.Snapshot())
}

func (s *Server) adminChatOpen(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}
	av.Chat.OpenThread(req.Context(), chi.URLParam(req, "chatID"))
	writeData(res, av.Chat.Snapshot())
}

func (s *Server) adminChatSend(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	userID, text, file, err := parseMessageRequest(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if userID == "" {
		writeError(res, http.StatusBadRequest, "userId is required")
		return
	}

	localID, err := av.Chat.Send(req.Context(), chi.URLParam(req, "chatID"), userID, text, file)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]string{"localId": localID})
}

func (s *Server) adminChatTyping(res http.ResponseWriter, req *http.Request) {
	av := s.adminSurface(res)
	if av == nil {
		return
	}

	var body struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	av.Chat.Typing(chi.URLParam(req, "chatID"), body.IsTyping)
	writeData(res, map[string]bool{"sent": true})
}

func (s *Server) userChatSnapshot(res http.ResponseWriter, req *http.Request) {
	view := s.app.UserChat()
	if view == nil {
		writeError(res, http.StatusUnauthorized, "user is not logged in")
		return
	}
	writeData(res, view.Snapshot())
}

func (s *Server) userChatSend(res http.ResponseWriter, req *http.Request) {
	view := s.app.UserChat()
	if view == nil {
		writeError(res, http.StatusUnauthorized, "user is not logged in")
		return
	}

	_, text, file, err := parseMessageRequest(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if text == "" && file == nil {
		writeError(res, http.StatusBadRequest, "message is empty")
		return
	}

	localID, err := view.Send(req.Context(), text, file)
	if err != nil {
		// The optimistic entry is already visible; the UI keeps it as
		// pending or failed depending on the failure kind.
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]string{"localId": localID})
}

func (s *Server) userChatUpload(res http.ResponseWriter, req *http.Request) {
	view := s.app.UserChat()
	if view == nil {
		writeError(res, http.StatusUnauthorized, "user is not logged in")
		return
	}

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	file, err := readUpload(req, "file")
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	if file == nil {
		writeError(res, http.StatusBadRequest, "file is required")
		return
	}

	url, err := view.Upload(req.Context(), file)
	if err != nil {
		writeFailure(res, err)
		return
	}
	writeData(res, map[string]string{"url": url})
}

func (s *Server) userChatTyping(res http.ResponseWriter, req *http.Request) {
	view := s.app.UserChat()
	if view == nil {
		writeError(res, http.StatusUnauthorized, "user is not logged in")
		return
	}

	var body struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := readJSON(req, &body); err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}
	view.Typing(body.IsTyping)
	writeData(res, map[string]bool{"sent": true})
}

// parseItemRequest reads an item either as JSON or, when an image rides
// along, as a multipart form with an "image" file field.
func parseItemRequest(req *http.Request) (models.Item, *api.FileUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		var item models.Item
		err := readJSON(req, &item)
		return item, nil, err
	}

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return models.Item{}, nil, err
	}

	price, _ := strconv.ParseInt(req.FormValue("price"), 10, 64)
	date, _ := time.Parse(time.RFC3339, req.FormValue("date"))
	item := models.Item{
		Code:   req.FormValue("code"),
		Price:  price,
		Status: models.ItemStatus(req.FormValue("status")),
		Date:   date,
	}

	upload, err := readUpload(req, "image")
	if err != nil {
		return models.Item{}, nil, err
	}
	return item, upload, nil
}

// parseMessageRequest reads a chat message either as JSON or, when an
// attachment rides along, as a multipart form with a "file" field.
func parseMessageRequest(req *http.Request) (userID, text string, file *api.FileUpload, err error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		var body struct {
			UserID string `json:"userId"`
			Text   string `json:"text"`
		}
		if err = readJSON(req, &body); err != nil {
			return "", "", nil, err
		}
		return body.UserID, body.Text, nil, nil
	}

	if err = req.ParseMultipartForm(32 << 20); err != nil {
		return "", "", nil, err
	}
	file, err = readUpload(req, "file")
	if err != nil {
		return "", "", nil, err
	}
	return req.FormValue("userId"), req.FormValue("text"), file, nil
}

// readUpload extracts an optional file field from a parsed multipart form.
func readUpload(req *http.Request, field string) (*api.FileUpload, error) {
	f, header, err := req.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &api.FileUpload{
		Field:       field,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}
