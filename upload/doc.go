// Package upload moves caller-supplied reference bitmaps to the
// provider's side before a job is submitted. Four wire flavors are
// supported: direct multipart form, presign+PUT+confirm, signed PUT
// to cloud object storage with provider-issued temporary keys, and
// base64 JSON bodies. Results come back as ordered UploadedAssets;
// any step failing aborts the whole request.
package upload
