package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stashhub/internal/chat/dto"
	"stashhub/internal/chat/handler"
	"stashhub/internal/chat/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- MOCK SERVICE ---

type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) Create(ctx context.Context, creatorID string, req *dto.CreateRoomDTO) (*dto.RoomResponse, error) {
	args := m.Called(ctx, creatorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RoomResponse), args.Error(1)
}

func (m *MockRoomService) List(ctx context.Context, activeOnly bool) ([]dto.RoomResponse, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]dto.RoomResponse), args.Error(1)
}

func (m *MockRoomService) Get(ctx context.Context, roomID int64) (*dto.RoomResponse, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RoomResponse), args.Error(1)
}

func (m *MockRoomService) Stats(ctx context.Context, roomID int64) (*dto.RoomStatsResponse, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RoomStatsResponse), args.Error(1)
}

func (m *MockRoomService) SetActive(ctx context.Context, roomID int64, userID string, active bool) error {
	args := m.Called(ctx, roomID, userID, active)
	return args.Error(0)
}

func (m *MockRoomService) Delete(ctx context.Context, roomID int64, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

// --- SETUP ---

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func setupRoomRouter(mockService *MockRoomService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handler.NewRoomHandler(mockService)

	api := r.Group("/api/chat")
	api.Use(fakeAuth("test-user"))
	h.RegisterRoutes(api)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
	Meta    map[string]any  `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// --- TESTS ---

func TestRoomHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		expected := &dto.RoomResponse{ID: 1, Name: "general", CreatedBy: "test-user", IsActive: true}
		mockService.On("Create", mock.Anything, "test-user", mock.Anything).Return(expected, nil).Once()

		body, _ := json.Marshal(dto.CreateRoomDTO{Name: "general"})
		req, _ := http.NewRequest(http.MethodPost, "/api/chat/rooms", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)
		mockService.AssertExpectations(t)
	})

	t.Run("BindingFailure", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		req, _ := http.NewRequest(http.MethodPost, "/api/chat/rooms", bytes.NewReader([]byte(`{"name":"ab"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Errors)
	})

	t.Run("ConflictMapsTo409", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		mockService.On("Create", mock.Anything, "test-user", mock.Anything).Return(nil, service.ErrConflict).Once()

		body, _ := json.Marshal(dto.CreateRoomDTO{Name: "general"})
		req, _ := http.NewRequest(http.MethodPost, "/api/chat/rooms", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRoomHandler_Get(t *testing.T) {
	t.Run("NotFoundMapsTo404", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		mockService.On("Get", mock.Anything, int64(42)).Return(nil, service.ErrRoomNotFound).Once()

		req, _ := http.NewRequest(http.MethodGet, "/api/chat/rooms/42", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
	})

	t.Run("InvalidIDRejected", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		req, _ := http.NewRequest(http.MethodGet, "/api/chat/rooms/banana", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRoomHandler_Delete(t *testing.T) {
	t.Run("AuthorizationErrorMapsTo403", func(t *testing.T) {
		mockService := new(MockRoomService)
		r := setupRoomRouter(mockService)

		mockService.On("Delete", mock.Anything, int64(1), "test-user").
			Return(&service.AuthorizationError{Reason: "only the room owner or an admin can manage this room"}).Once()

		req, _ := http.NewRequest(http.MethodDelete, "/api/chat/rooms/1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		env := decodeEnvelope(t, w)
		assert.Contains(t, env.Errors[0], "owner")
	})
}
