package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbecker/confab/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// multipartBody builds a multipart request body with a single file field.
func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestAddAudioMessage(t *testing.T) {
	mockRepo := &database.MockConfabRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.SenderId == 1 && p.ReceiverId == 2 && p.Type == "audio" &&
			strings.HasPrefix(p.Body, "recordings"+string(filepath.Separator))
	})).Return(database.Message{Id: 5, SenderId: 1, ReceiverId: 2, Type: "audio", Status: "sent"}, nil).Once()

	app, _ := newTestApp(t, mockRepo)

	body, contentType := multipartBody(t, "audio", "note.webm", "audio-bytes")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages/audio?to=2", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.addAudioMessage(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	// the recording should be on disk under the uploads directory
	entries, err := os.ReadDir(filepath.Join(app.uploadsDir, "recordings"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-note.webm"))
}

func TestAddImageMessageMissingRecipient(t *testing.T) {
	app, _ := newTestApp(t, &database.MockConfabRepository{})

	body, contentType := multipartBody(t, "image", "photo.png", "png-bytes")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages/image", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.addImageMessage(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddFileMessageRemovesOrphanOnStorageError(t *testing.T) {
	mockRepo := &database.MockConfabRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("CreateMessage", mock.AnythingOfType("database.CreateMessageParams")).
		Return(database.Message{}, assert.AnError).Once()

	app, _ := newTestApp(t, mockRepo)

	body, contentType := multipartBody(t, "image", "photo.png", "png-bytes")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages/image?to=2", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.addImageMessage(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	entries, err := os.ReadDir(filepath.Join(app.uploadsDir, "images"))
	require.NoError(t, err)
	assert.Empty(t, entries, "expected orphaned upload to be removed")
}
