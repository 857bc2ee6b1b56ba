package registry

import (
	"fmt"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

type key struct {
	category string
	provider string
	kind     types.TaskKind
}

// Registry is the set of provider records. It is populated once at
// startup and read-only afterwards; Register is not safe to call
// concurrently with Lookup.
type Registry struct {
	records map[key]*Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{records: make(map[key]*Record)}
}

// Register validates a record and adds it. Records are immutable once
// registered; re-registering a key is an error.
func (r *Registry) Register(rec *Record) error {
	if err := validate(rec); err != nil {
		return types.NewError(types.ErrInternal,
			fmt.Sprintf("invalid record %s/%s/%s: %v", rec.Category, rec.Provider, rec.Kind, err))
	}
	k := key{rec.Category, rec.Provider, rec.Kind}
	if _, exists := r.records[k]; exists {
		return types.NewError(types.ErrInternal,
			fmt.Sprintf("record %s/%s/%s already registered", rec.Category, rec.Provider, rec.Kind))
	}
	r.records[k] = rec
	return nil
}

// Lookup selects the record for a category, provider and task kind.
func (r *Registry) Lookup(category, provider string, kind types.TaskKind) (*Record, error) {
	rec, ok := r.records[key{category, provider, kind}]
	if !ok {
		return nil, types.NewError(types.ErrConfigMissing,
			fmt.Sprintf("no provider record for %s/%s/%s", category, provider, kind))
	}
	return rec, nil
}

// Records returns every registered record, for validation sweeps.
func (r *Registry) Records() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

func validate(rec *Record) error {
	if rec.Provider == "" || rec.Category == "" || rec.Kind == "" {
		return fmt.Errorf("provider, category and kind are required")
	}
	if rec.SubmitPath == "" {
		return fmt.Errorf("submit_path is required")
	}
	switch rec.Auth {
	case auth.KindBearer, auth.KindJWTHS256, auth.KindCookieSession, auth.KindCOSPresign:
	default:
		return fmt.Errorf("unknown auth strategy %q", rec.Auth)
	}

	switch rec.WaitMode {
	case WaitPoll:
		if rec.PollPathTemplate == "" {
			return fmt.Errorf("poll mode requires poll_path_template")
		}
		if rec.Adapter.JobID == "" {
			return fmt.Errorf("poll mode requires a job id path")
		}
		if rec.Adapter.Status == "" {
			return fmt.Errorf("poll mode requires a status path")
		}
		if len(rec.Terminal.Success) == 0 {
			return fmt.Errorf("poll mode requires a non-empty success set")
		}
		if overlaps(rec.Terminal.Success, rec.Terminal.Failure) ||
			overlaps(rec.Terminal.Success, rec.Terminal.Cancel) ||
			overlaps(rec.Terminal.Failure, rec.Terminal.Cancel) {
			return fmt.Errorf("terminal sets must be disjoint")
		}
		if len(rec.Adapter.ResultURLs) == 0 {
			return fmt.Errorf("poll mode requires result url paths")
		}
	case WaitStream:
		if len(rec.Adapter.ResultURLs) == 0 {
			return fmt.Errorf("stream mode requires result url paths")
		}
	case WaitSync:
		if rec.Adapter.SyncB64 == "" && rec.Adapter.SyncURL == "" {
			return fmt.Errorf("sync mode requires a b64 or url result path")
		}
	default:
		return fmt.Errorf("unknown wait mode %q", rec.WaitMode)
	}

	if up := rec.Upload; up != nil {
		if up.Path == "" {
			return fmt.Errorf("upload spec requires a path")
		}
		switch up.Flavor {
		case UploadMultipart:
			if up.Adapter.AssetURL == "" {
				return fmt.Errorf("multipart upload requires an asset url path")
			}
		case UploadPresign:
			if up.ConfirmPath == "" {
				return fmt.Errorf("presign upload requires a confirm path")
			}
			if up.Adapter.PresignURL == "" || up.Adapter.FileID == "" {
				return fmt.Errorf("presign upload requires presign url and file id paths")
			}
		case UploadCOS:
			a := up.Adapter
			if a.COSBucket == "" || a.COSRegion == "" || a.COSKey == "" ||
				a.COSSecretID == "" || a.COSSecretKey == "" || a.AssetURL == "" {
				return fmt.Errorf("cos upload requires bucket, region, key, credential and asset url paths")
			}
		case UploadJSONBase64:
			if up.Adapter.AssetID == "" {
				return fmt.Errorf("json upload requires an asset id path")
			}
		default:
			return fmt.Errorf("unknown upload flavor %q", up.Flavor)
		}
	}

	if rec.Sizes != nil {
		if err := rec.Sizes.Validate(); err != nil {
			return err
		}
	}
	return nil
}
