package media

import "context"

// UploadResult is the outcome of a successful asset upload.
type UploadResult struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"` // Seconds; zero for images.
}

// UploadService is the collaborator contract for pushing a locally staged
// asset to the CDN-backed store.
//
// Upload returns (nil, nil) when localPath is empty — "no asset provided"
// and "upload failed" stay distinguishable at the call site. A non-nil
// error always means the upload itself failed.
type UploadService interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
}
