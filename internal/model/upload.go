package model

import "strings"

// UploadStatusOK is the status value of a successful upload.
const UploadStatusOK = "ok"

// UploadResult is the upload endpoint response.
type UploadResult struct {
	Status      string      `json:"status"`
	Message     string      `json:"message,omitempty"`
	FileID      string      `json:"file_id,omitempty"`
	Filename    string      `json:"filename,omitempty"`
	FileType    string      `json:"file_type,omitempty"`
	Content     string      `json:"content,omitempty"`
	Base64Image string      `json:"base64_image,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

// OK reports whether the upload succeeded.
func (r *UploadResult) OK() bool {
	return r.Status == UploadStatusOK
}

// IsImage reports whether the uploaded file is an image type that is
// sent to the model as a content part.
func (r *UploadResult) IsImage() bool {
	switch strings.ToLower(r.FileType) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// ImageDataURL returns the data URL for an image upload.
func (r *UploadResult) ImageDataURL() string {
	mime := strings.ToLower(r.FileType)
	if mime == "jpg" {
		mime = "jpeg"
	}
	return "data:image/" + mime + ";base64," + r.Base64Image
}
