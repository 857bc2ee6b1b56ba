package upload

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

// Pipeline uploads reference bitmaps per a record's upload spec.
type Pipeline struct {
	client *transport.Client
	logger *zap.Logger
}

// New builds a pipeline on the shared transport client.
func New(client *transport.Client, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{client: client, logger: logger}
}

// UploadAll encodes every bitmap as PNG and uploads it, preserving
// caller order. The first failure aborts; assets already uploaded are
// left behind for the provider to garbage-collect.
func (p *Pipeline) UploadAll(ctx context.Context, rec *registry.Record, baseURL string,
	strategy auth.Strategy, images []*codec.Tensor) ([]types.UploadedAsset, error) {

	if rec.Upload == nil {
		return nil, types.NewError(types.ErrInternal,
			"record "+rec.Provider+" declares no upload pipeline")
	}
	assets := make([]types.UploadedAsset, 0, len(images))
	for i, img := range images {
		data, err := codec.ToBytes(img, "PNG")
		if err != nil {
			return nil, err
		}
		shape := img.Shape()
		asset, err := p.uploadOne(ctx, rec, baseURL, strategy, data)
		if err != nil {
			return nil, types.NewError(types.KindOf(err),
				fmt.Sprintf("upload reference image %d: %v", i, err)).WithCause(err)
		}
		if asset.Width == 0 {
			asset.Width = shape[2]
		}
		if asset.Height == 0 {
			asset.Height = shape[1]
		}
		asset.MIME = "image/png"
		p.logger.Debug("reference image uploaded",
			zap.String("provider", rec.Provider),
			zap.Int("index", i),
			zap.String("url", asset.URL))
		assets = append(assets, asset)
	}
	return assets, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, rec *registry.Record, baseURL string,
	strategy auth.Strategy, data []byte) (types.UploadedAsset, error) {

	spec := rec.Upload
	switch spec.Flavor {
	case registry.UploadMultipart:
		return p.multipart(ctx, spec, baseURL, strategy, data)
	case registry.UploadPresign:
		return p.presign(ctx, spec, baseURL, strategy, data)
	case registry.UploadCOS:
		return p.cos(ctx, spec, baseURL, strategy, data)
	case registry.UploadJSONBase64:
		return p.jsonBase64(ctx, spec, baseURL, strategy, data)
	default:
		return types.UploadedAsset{}, types.NewError(types.ErrInternal,
			"unknown upload flavor "+string(spec.Flavor))
	}
}

func (p *Pipeline) multipart(ctx context.Context, spec *registry.UploadSpec, baseURL string,
	strategy auth.Strategy, data []byte) (types.UploadedAsset, error) {

	field := spec.FileField
	if field == "" {
		field = "file"
	}
	body, contentType, err := transport.EncodeMultipart(nil, []transport.FilePart{{
		Field:       field,
		Filename:    uuid.NewString() + ".png",
		ContentType: "image/png",
		Data:        data,
	}})
	if err != nil {
		return types.UploadedAsset{}, err
	}
	doc, err := p.call(ctx, &transport.Request{
		Method:      http.MethodPost,
		URL:         join(baseURL, spec.Path),
		Body:        body,
		ContentType: contentType,
		Auth:        strategy,
	})
	if err != nil {
		return types.UploadedAsset{}, err
	}
	asset := types.UploadedAsset{
		ID:  doc.Get(spec.Adapter.AssetID).String(),
		URL: doc.Get(spec.Adapter.AssetURL).String(),
	}
	if spec.Adapter.Width != "" {
		asset.Width = int(doc.Get(spec.Adapter.Width).Int())
	}
	if spec.Adapter.Height != "" {
		asset.Height = int(doc.Get(spec.Adapter.Height).Int())
	}
	if asset.URL == "" {
		return types.UploadedAsset{}, types.NewError(types.ErrProviderRejected,
			"upload response carried no asset url")
	}
	return asset, nil
}

func (p *Pipeline) presign(ctx context.Context, spec *registry.UploadSpec, baseURL string,
	strategy auth.Strategy, data []byte) (types.UploadedAsset, error) {

	sum := sha256.Sum256(data)
	reqBody := map[string]any{
		"file_name": uuid.NewString() + ".png",
		"hash_val":  hex.EncodeToString(sum[:]),
		"size":      len(data),
	}
	addFixed(reqBody, spec)
	doc, err := p.postJSON(ctx, join(baseURL, spec.Path), strategy, reqBody)
	if err != nil {
		return types.UploadedAsset{}, err
	}
	presignURL := doc.Get(spec.Adapter.PresignURL).String()
	fileID := doc.Get(spec.Adapter.FileID).String()
	if presignURL == "" || fileID == "" {
		return types.UploadedAsset{}, types.NewError(types.ErrProviderRejected,
			"presign response missing url or file id")
	}

	if err := p.put(ctx, presignURL, "image/png", nil, data); err != nil {
		return types.UploadedAsset{}, err
	}

	confirmBody := map[string]any{"file_id": fileID}
	addFixed(confirmBody, spec)
	doc, err = p.postJSON(ctx, join(baseURL, spec.ConfirmPath), strategy, confirmBody)
	if err != nil {
		return types.UploadedAsset{}, err
	}
	asset := types.UploadedAsset{
		ID:  fileID,
		URL: doc.Get(spec.Adapter.AssetURL).String(),
	}
	if asset.URL == "" {
		return types.UploadedAsset{}, types.NewError(types.ErrProviderRejected,
			"confirm response carried no asset url")
	}

	if spec.RegisterPath != "" {
		registerBody := map[string]any{"file_id": fileID, "url": asset.URL}
		addFixed(registerBody, spec)
		if _, err := p.postJSON(ctx, join(baseURL, spec.RegisterPath), strategy, registerBody); err != nil {
			return types.UploadedAsset{}, err
		}
	}
	return asset, nil
}

// cos fetches short-lived object-storage credentials from the
// provider, PUTs the bytes with a signed request, and returns the
// resource URL the provider assigned up front.
func (p *Pipeline) cos(ctx context.Context, spec *registry.UploadSpec, baseURL string,
	strategy auth.Strategy, data []byte) (types.UploadedAsset, error) {

	doc, err := p.postJSON(ctx, join(baseURL, spec.Path), strategy, map[string]any{})
	if err != nil {
		return types.UploadedAsset{}, err
	}
	a := spec.Adapter
	bucket := doc.Get(a.COSBucket).String()
	region := doc.Get(a.COSRegion).String()
	key := doc.Get(a.COSKey).String()
	assetURL := doc.Get(a.AssetURL).String()
	creds := auth.COSCredentials{
		SecretID:    doc.Get(a.COSSecretID).String(),
		SecretKey:   doc.Get(a.COSSecretKey).String(),
		Token:       doc.Get(a.COSToken).String(),
		StartTime:   doc.Get(a.COSStartTime).Int(),
		ExpiredTime: doc.Get(a.COSExpiredTime).Int(),
	}
	if bucket == "" || region == "" || key == "" || creds.SecretID == "" || assetURL == "" {
		return types.UploadedAsset{}, types.NewError(types.ErrProviderRejected,
			"upload-info response missing storage credentials")
	}

	host := fmt.Sprintf("%s.cos.%s.myqcloud.com", bucket, region)
	putURL := "https://" + host + "/" + strings.TrimPrefix(key, "/")
	signer := &auth.COSSigner{Creds: creds}
	if err := p.put(ctx, putURL, "image/png", signer, data); err != nil {
		return types.UploadedAsset{}, err
	}
	return types.UploadedAsset{URL: assetURL}, nil
}

func (p *Pipeline) jsonBase64(ctx context.Context, spec *registry.UploadSpec, baseURL string,
	strategy auth.Strategy, data []byte) (types.UploadedAsset, error) {

	doc, err := p.postJSON(ctx, join(baseURL, spec.Path), strategy, map[string]any{
		"fileName":     uuid.NewString() + ".png",
		"fileMimeType": "image/png",
		"content":      base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return types.UploadedAsset{}, err
	}
	asset := types.UploadedAsset{
		ID:  doc.Get(spec.Adapter.AssetID).String(),
		URL: doc.Get(spec.Adapter.AssetURL).String(),
	}
	if asset.ID == "" {
		return types.UploadedAsset{}, types.NewError(types.ErrProviderRejected,
			"upload response carried no file id")
	}
	return asset, nil
}

func (p *Pipeline) postJSON(ctx context.Context, url string, strategy auth.Strategy,
	body map[string]any) (gjson.Result, error) {

	raw, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, types.NewError(types.ErrInternal, "encode upload body").WithCause(err)
	}
	return p.call(ctx, &transport.Request{
		Method:      http.MethodPost,
		URL:         url,
		Body:        raw,
		ContentType: "application/json",
		Auth:        strategy,
	})
}

func (p *Pipeline) put(ctx context.Context, url, contentType string, strategy auth.Strategy, data []byte) error {
	resp, err := p.client.Do(ctx, &transport.Request{
		Method:      http.MethodPut,
		URL:         url,
		Body:        data,
		ContentType: contentType,
		Auth:        strategy,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewError(types.ErrProviderRejected,
			fmt.Sprintf("object PUT returned HTTP %d", resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode)
	}
	return nil
}

func (p *Pipeline) call(ctx context.Context, req *transport.Request) (gjson.Result, error) {
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if auth.DetectChallenge(resp.Body) {
			return gjson.Result{}, types.NewError(types.ErrAuthChallenge,
				"upload endpoint served an anti-bot challenge page").
				WithHTTPStatus(resp.StatusCode)
		}
		return gjson.Result{}, types.NewError(types.ErrProviderRejected,
			fmt.Sprintf("upload call returned HTTP %d", resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode)
	}
	return gjson.ParseBytes(resp.Body), nil
}

// addFixed attaches the provider-fixed category and template id,
// keeping numeric categories numeric on the wire.
func addFixed(body map[string]any, spec *registry.UploadSpec) {
	if spec.Category != "" {
		if n, err := strconv.Atoi(spec.Category); err == nil {
			body["category"] = n
		} else {
			body["category"] = spec.Category
		}
	}
	if spec.TemplateID != "" {
		body["template_id"] = spec.TemplateID
	}
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
