package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sbecker/confab/internal/types"
	"github.com/teris-io/shortid"
)

const maxUploadSize = 10 << 20 // 10 MB, matching the request body limit

// addAudioMessage accepts a multipart recording, stores it under the uploads
// directory and creates an audio message whose body is the file's relative
// path.
func (s *ConfabApp) addAudioMessage(w http.ResponseWriter, r *http.Request) {
	s.addFileMessage(w, r, "audio", "recordings", types.TypeAudio)
}

// addImageMessage is the image counterpart of addAudioMessage.
func (s *ConfabApp) addImageMessage(w http.ResponseWriter, r *http.Request) {
	s.addFileMessage(w, r, "image", "images", types.TypeImage)
}

func (s *ConfabApp) addFileMessage(w http.ResponseWriter, r *http.Request, field, subdir string, msgType types.MessageType) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	to, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	relPath, err := s.saveUpload(file, subdir, header.Filename)
	if err != nil {
		s.log.Println("save upload:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.messages.CreateMessage(userId, to, relPath, msgType)
	if err != nil {
		// the message row never existed, so remove the orphaned file
		os.Remove(filepath.Join(s.uploadsDir, relPath))
		s.writeMessagingError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

// saveUpload writes the uploaded file under uploadsDir/subdir with a
// shortid-prefixed name and returns the path relative to the uploads root.
func (s *ConfabApp) saveUpload(src io.Reader, subdir, origName string) (string, error) {
	sid, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate file id: %w", err)
	}

	dir := filepath.Join(s.uploadsDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := sid + "-" + filepath.Base(origName)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return filepath.Join(subdir, name), nil
}
