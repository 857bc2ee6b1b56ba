package registry

// UploadFlavor selects how a record gets reference bitmaps to the
// provider's side.
type UploadFlavor string

const (
	// UploadMultipart posts the bytes as a multipart form.
	UploadMultipart UploadFlavor = "multipart"
	// UploadPresign asks for a presigned PUT URL, PUTs the bytes, then
	// confirms the upload to obtain the canonical asset URL.
	UploadPresign UploadFlavor = "presign"
	// UploadCOS fetches short-lived object-storage credentials and
	// PUTs the bytes with a signed request.
	UploadCOS UploadFlavor = "cos"
	// UploadJSONBase64 posts the bytes base64-encoded inside a JSON
	// body, consumer-site style.
	UploadJSONBase64 UploadFlavor = "json_base64"
)

// UploadAdapter declares where upload responses carry their fields, as
// gjson paths.
type UploadAdapter struct {
	PresignURL string
	FileID     string

	AssetID  string
	AssetURL string
	Width    string
	Height   string

	// COS credential fields of the upload-info response.
	COSBucket      string
	COSRegion      string
	COSKey         string
	COSSecretID    string
	COSSecretKey   string
	COSToken       string
	COSStartTime   string
	COSExpiredTime string
}

// UploadSpec describes a record's upload pipeline.
type UploadSpec struct {
	Flavor UploadFlavor

	Path         string
	ConfirmPath  string
	RegisterPath string

	// Category and TemplateID are provider-fixed form values sent with
	// presign and confirm calls.
	Category   string
	TemplateID string

	// FileField is the multipart field name, defaults to "file".
	FileField string

	Adapter UploadAdapter
}
