package registry

import (
	"time"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

// Category names match the configuration document's top-level keys.
const (
	CategoryImage  = "image"
	CategoryVideo  = "video"
	CategorySpeech = "speech"
)

// dashScopeTerminal is shared by every DashScope async endpoint.
// UNKNOWN means the task id is gone; treating it as in-progress would
// poll forever, so it sits in the failure set.
var dashScopeTerminal = TerminalStates{
	Success: []string{"SUCCEEDED"},
	Failure: []string{"FAILED", "UNKNOWN"},
	Cancel:  []string{"CANCELED"},
}

// dashScopeVideoSizes maps the resolution tiers DashScope's video
// endpoints accept. The 4:3 and 3:4 entries at 1080P are snapped to
// the exact ratio; the service accepts any size in the tier's range.
var dashScopeVideoSizes = &SizeCatalog{
	Tiers: map[string]map[string]Size{
		"480P": {
			"16:9": {832, 480},
			"9:16": {480, 832},
			"1:1":  {624, 624},
		},
		"720P": {
			"16:9": {1280, 720},
			"9:16": {720, 1280},
			"1:1":  {960, 960},
			"4:3":  {960, 720},
			"3:4":  {720, 960},
		},
		"1080P": {
			"16:9": {1920, 1080},
			"9:16": {1080, 1920},
			"1:1":  {1440, 1440},
			"4:3":  {1440, 1080},
			"3:4":  {1080, 1440},
		},
	},
	Models: map[string]ModelSizeRule{
		"wanx2.1-i2v-turbo": {AllowedTiers: []string{"480P", "720P"}},
		"wanx2.1-kf2v-plus": {FixedSize: &Size{1280, 720}},
	},
}

var dashScopeAdapter = ResponseAdapter{
	JobID:            "output.task_id",
	Status:           "output.task_status",
	ResultURLs:       []string{"output.results.#.url", "output.video_url"},
	ActualPrompt:     "output.results.0.actual_prompt",
	ErrorCode:        "output.code",
	ErrorMessage:     "output.message",
	SubmitTime:       "output.submit_time",
	ScheduledTime:    "output.scheduled_time",
	EndTime:          "output.end_time",
	UsageImageCount:  "usage.image_count",
	UsageTotalTokens: "usage.total_tokens",
}

var dashScopeContentCodes = []string{"IPInfringementSuspect", "DataInspectionFailed"}

func dashScopeRecord(category string, kind types.TaskKind, submitPath string, schema SubmitSchema) *Record {
	if schema.Headers == nil {
		schema.Headers = map[string]string{}
	}
	schema.Headers["X-DashScope-Async"] = "enable"
	return &Record{
		Provider:           "dashscope",
		Category:           category,
		Kind:               kind,
		BaseURL:            "https://dashscope.aliyuncs.com",
		SubmitPath:         submitPath,
		PollPathTemplate:   "/api/v1/tasks/{task_id}",
		Auth:               auth.KindBearer,
		WaitMode:           WaitPoll,
		Submit:             schema,
		Adapter:            dashScopeAdapter,
		Terminal:           dashScopeTerminal,
		Timeouts:           Timeouts{PollInterval: 5 * time.Second, MaxWait: 10 * time.Minute},
		ContentPolicyCodes: dashScopeContentCodes,
	}
}

// Builtin returns the registry of known providers.
func Builtin() (*Registry, error) {
	r := New()
	records := []*Record{
		dashScopeT2I(),
		dashScopeImageEdit(),
		dashScopeT2V(),
		dashScopeI2V(),
		dashScopeKF2V(),
		glmImage(),
		modelScopeImageSync(),
		modelScopeImageAsync(),
		openAIImage(),
		haiyiImage(),
		hunyuanImage(),
		hunyuanImageEdit(),
		grokVideo(),
		gagaVideo(),
	}
	for _, rec := range records {
		if err := r.Register(rec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func dashScopeT2I() *Record {
	rec := dashScopeRecord(CategoryImage, types.TaskTextToImage,
		"/api/v1/services/aigc/text2image/image-synthesis",
		SubmitSchema{
			Template: `{"model":"","input":{},"parameters":{"n":1}}`,
			Slots: map[Slot]string{
				SlotModel:          "model",
				SlotPrompt:         "input.prompt",
				SlotNegativePrompt: "input.negative_prompt",
				SlotSize:           "parameters.size",
				SlotSeed:           "parameters.seed",
				SlotCount:          "parameters.n",
				SlotWatermark:      "parameters.watermark",
			},
		})
	rec.Sizes = &SizeCatalog{
		Tiers: map[string]map[string]Size{
			"1K": {
				"1:1":  {1024, 1024},
				"16:9": {1280, 720},
				"9:16": {720, 1280},
				"4:3":  {1152, 864},
				"3:4":  {864, 1152},
			},
		},
	}
	return rec
}

func dashScopeImageEdit() *Record {
	return dashScopeRecord(CategoryImage, types.TaskImageToImage,
		"/api/v1/services/aigc/image2image/image-synthesis",
		SubmitSchema{
			Template: `{"model":"wanx2.1-imageedit","input":{},"parameters":{"n":1}}`,
			Slots: map[Slot]string{
				SlotModel:     "model",
				SlotPrompt:    "input.prompt",
				SlotFunction:  "input.function",
				SlotRefImage:  "input.base_image_url",
				SlotSeed:      "parameters.seed",
				SlotCount:     "parameters.n",
				SlotWatermark: "parameters.watermark",
			},
		})
}

func dashScopeT2V() *Record {
	rec := dashScopeRecord(CategoryVideo, types.TaskTextToVideo,
		"/api/v1/services/aigc/video-generation/video-synthesis",
		SubmitSchema{
			Template: `{"model":"","input":{},"parameters":{"prompt_extend":true}}`,
			Slots: map[Slot]string{
				SlotModel:     "model",
				SlotPrompt:    "input.prompt",
				SlotSize:      "parameters.size",
				SlotSeed:      "parameters.seed",
				SlotDuration:  "parameters.duration",
				SlotWatermark: "parameters.watermark",
			},
		})
	rec.Sizes = dashScopeVideoSizes
	return rec
}

func dashScopeI2V() *Record {
	rec := dashScopeRecord(CategoryVideo, types.TaskImageToVideo,
		"/api/v1/services/aigc/video-generation/video-synthesis",
		SubmitSchema{
			Template: `{"model":"","input":{},"parameters":{"prompt_extend":true}}`,
			Slots: map[Slot]string{
				SlotModel:      "model",
				SlotPrompt:     "input.prompt",
				SlotRefImage:   "input.img_url",
				SlotResolution: "parameters.resolution",
				SlotSeed:       "parameters.seed",
				SlotDuration:   "parameters.duration",
				SlotWatermark:  "parameters.watermark",
			},
		})
	rec.Sizes = dashScopeVideoSizes
	return rec
}

// dashScopeKF2V is the keyframe-to-video endpoint: first and last
// frame in, fixed 720P out.
func dashScopeKF2V() *Record {
	rec := dashScopeRecord(CategoryVideo, types.TaskImageToVideo,
		"/api/v1/services/aigc/image2video/video-synthesis",
		SubmitSchema{
			Template: `{"model":"wanx2.1-kf2v-plus","input":{},"parameters":{"prompt_extend":true}}`,
			Slots: map[Slot]string{
				SlotModel:      "model",
				SlotPrompt:     "input.prompt",
				SlotFirstFrame: "input.first_frame_url",
				SlotLastFrame:  "input.last_frame_url",
				SlotSeed:       "parameters.seed",
				SlotDuration:   "parameters.duration",
				SlotWatermark:  "parameters.watermark",
			},
		})
	rec.Provider = "dashscope-kf2v"
	rec.Sizes = dashScopeVideoSizes
	return rec
}

func glmImage() *Record {
	return &Record{
		Provider:   "glm",
		Category:   CategoryImage,
		Kind:       types.TaskTextToImage,
		BaseURL:    "https://open.bigmodel.cn",
		SubmitPath: "/api/paas/v4/images/generations",
		Auth:       auth.KindJWTHS256,
		WaitMode:   WaitSync,
		Submit: SubmitSchema{
			Template:      `{"model":"","prompt":""}`,
			SizeSeparator: "x",
			Slots: map[Slot]string{
				SlotModel:  "model",
				SlotPrompt: "prompt",
				SlotSize:   "size",
			},
		},
		Adapter: ResponseAdapter{
			SyncURL:      "data.0.url",
			ErrorCode:    "error.code",
			ErrorMessage: "error.message",
		},
		Timeouts: Timeouts{MaxWait: 5 * time.Minute},
		Sizes: &SizeCatalog{
			Tiers: map[string]map[string]Size{
				"1K": {
					"1:1":  {1024, 1024},
					"16:9": {1280, 720},
					"9:16": {720, 1280},
					"4:3":  {1152, 864},
					"3:4":  {864, 1152},
				},
			},
		},
		ContentPolicyCodes: []string{"1301"},
	}
}

func modelScopeImageSync() *Record {
	return &Record{
		Provider:   "modelscope",
		Category:   CategoryImage,
		Kind:       types.TaskTextToImage,
		BaseURL:    "https://api-inference.modelscope.cn",
		SubmitPath: "/v1/images/generations",
		Auth:       auth.KindBearer,
		WaitMode:   WaitSync,
		Submit: SubmitSchema{
			Template:      `{"model":"","prompt":""}`,
			SizeSeparator: "x",
			Slots: map[Slot]string{
				SlotModel:          "model",
				SlotPrompt:         "prompt",
				SlotNegativePrompt: "negative_prompt",
				SlotSize:           "size",
				SlotSeed:           "seed",
			},
		},
		Adapter: ResponseAdapter{
			SyncURL:      "images.0.url",
			ErrorCode:    "errors.code",
			ErrorMessage: "errors.message",
		},
		Timeouts: Timeouts{MaxWait: 5 * time.Minute},
	}
}

// modelScopeImageAsync is the same endpoint flipped async by the
// X-ModelScope-Async-Mode header.
func modelScopeImageAsync() *Record {
	return &Record{
		Provider:         "modelscope-async",
		Category:         CategoryImage,
		Kind:             types.TaskTextToImage,
		BaseURL:          "https://api-inference.modelscope.cn",
		SubmitPath:       "/v1/images/generations",
		PollPathTemplate: "/v1/tasks/{task_id}",
		PollHeaders:      map[string]string{"X-ModelScope-Task-Type": "image_generation"},
		Auth:             auth.KindBearer,
		WaitMode:         WaitPoll,
		Submit: SubmitSchema{
			Template:      `{"model":"","prompt":""}`,
			SizeSeparator: "x",
			Headers:       map[string]string{"X-ModelScope-Async-Mode": "true"},
			Slots: map[Slot]string{
				SlotModel:          "model",
				SlotPrompt:         "prompt",
				SlotNegativePrompt: "negative_prompt",
				SlotSize:           "size",
				SlotSeed:           "seed",
			},
		},
		Adapter: ResponseAdapter{
			JobID:        "task_id",
			Status:       "task_status",
			ResultURLs:   []string{"output_images"},
			ErrorCode:    "errors.code",
			ErrorMessage: "errors.message",
		},
		Terminal: TerminalStates{
			Success: []string{"SUCCEED"},
			Failure: []string{"FAILED"},
		},
		Timeouts: Timeouts{PollInterval: 3 * time.Second, MaxWait: 10 * time.Minute},
	}
}

func openAIImage() *Record {
	return &Record{
		Provider:   "openai",
		Category:   CategoryImage,
		Kind:       types.TaskTextToImage,
		BaseURL:    "https://api.openai.com",
		SubmitPath: "/v1/images/generations",
		Auth:       auth.KindBearer,
		WaitMode:   WaitSync,
		Submit: SubmitSchema{
			Template:      `{"model":"","prompt":"","n":1}`,
			SizeSeparator: "x",
			Slots: map[Slot]string{
				SlotModel:  "model",
				SlotPrompt: "prompt",
				SlotSize:   "size",
				SlotCount:  "n",
			},
		},
		Adapter: ResponseAdapter{
			SyncB64:          "data.0.b64_json",
			SyncURL:          "data.0.url",
			ErrorCode:        "error.code",
			ErrorMessage:     "error.message",
			UsageTotalTokens: "usage.total_tokens",
		},
		Timeouts: Timeouts{MaxWait: 5 * time.Minute},
	}
}

// haiyiImage talks to a consumer site: cookie auth, POST polling with
// the job id in the body, numeric statuses ("3" is finished), and a
// presign+confirm upload for reference images.
func haiyiImage() *Record {
	return &Record{
		Provider:         "haiyi",
		Category:         CategoryImage,
		Kind:             types.TaskTextToImage,
		BaseURL:          "https://www.haiyi.art",
		SubmitPath:       "/api/v1/task/v2/text-to-img",
		PollPathTemplate: "/api/v1/task/batch-progress",
		PollMethod:       "POST",
		PollBodyTemplate: `{"task_ids":["{task_id}"],"ss":52}`,
		Auth:             auth.KindCookieSession,
		WaitMode:         WaitPoll,
		Submit: SubmitSchema{
			Template: `{"meta":{}}`,
			Slots: map[Slot]string{
				SlotPrompt: "meta.original_translated_meta_prompt",
				SlotRatio:  "meta.ratio",
				SlotCount:  "meta.count",
			},
		},
		Adapter: ResponseAdapter{
			JobID:        "data.id",
			Status:       "data.items.0.status",
			Progress:     "data.items.0.process",
			ResultURLs:   []string{"data.items.0.img_uris.#.url", "data.items.0.img_uris.#.cover_url"},
			ErrorCode:    "status.code",
			ErrorMessage: "status.msg",
		},
		Terminal: TerminalStates{
			Success: []string{"3"},
			Failure: []string{"4"},
		},
		Timeouts: Timeouts{PollInterval: 3 * time.Second, MaxWait: 10 * time.Minute},
		Upload: &UploadSpec{
			Flavor:      UploadPresign,
			Path:        "/api/v1/resource/uploadImageByPreSign",
			ConfirmPath: "/api/v1/resource/confirmImageUploadedByPreSign",
			Category:    "20",
			Adapter: UploadAdapter{
				PresignURL: "data.pre_sign",
				FileID:     "data.file_id",
				AssetURL:   "data.url",
			},
		},
		ContentPolicyCodes: []string{"70026"},
	}
}

// hunyuanImage is the consumer text-to-image endpoint: the poll
// response carries the result list as a JSON-encoded string.
func hunyuanImage() *Record {
	return &Record{
		Provider:         "hunyuan",
		Category:         CategoryImage,
		Kind:             types.TaskTextToImage,
		BaseURL:          "https://api.hunyuan.tencent.com",
		SubmitPath:       "/generation",
		PollPathTemplate: "/query_task",
		PollMethod:       "POST",
		PollBodyTemplate: `{"taskId":"{task_id}"}`,
		Auth:             auth.KindCookieSession,
		WaitMode:         WaitPoll,
		Submit: SubmitSchema{
			Template: `{"modelName":"hunyuan-image","model":"hunyuan-image"}`,
			Slots: map[Slot]string{
				SlotPrompt: "prompt",
				SlotRatio:  "ratio",
				SlotCount:  "num",
			},
		},
		Adapter: ResponseAdapter{
			JobID:          "taskId",
			Status:         "status",
			Progress:       "progressValue",
			ResultEnvelope: "result",
			ResultURLs:     []string{"data.#.url"},
			ErrorMessage:   "message",
		},
		Terminal: TerminalStates{
			Success: []string{"succeeded"},
			Failure: []string{"failed"},
		},
		Timeouts: Timeouts{PollInterval: 3 * time.Second, MaxWait: 5 * time.Minute},
	}
}

// hunyuanImageEdit streams SSE frames from the consumer chat surface.
// The no-watermark result arrives as a relative urlKey completed with
// the API host; the watermarked URL is kept for download fallback.
// Reference images go through COS with provider-issued temporary keys.
func hunyuanImageEdit() *Record {
	return &Record{
		Provider:   "hunyuan",
		Category:   CategoryImage,
		Kind:       types.TaskImageToImage,
		BaseURL:    "https://api.hunyuan.tencent.com",
		SubmitPath: "/api/new-portal/chat/{conversation_id}",
		Auth:       auth.KindCookieSession,
		WaitMode:   WaitStream,
		Submit: SubmitSchema{
			Template: `{"displayImageUrls":[]}`,
			Slots: map[Slot]string{
				SlotPrompt:    "prompt",
				SlotModel:     "model",
				SlotRatio:     "ratio",
				SlotRefImages: "displayImageUrls",
			},
		},
		Adapter: ResponseAdapter{
			Progress:      "value",
			ProgressScale: 100,
			ResultURLs:    []string{"urlKey"},
			FallbackURLs:  []string{"imageUrlHigh", "imageUrlLow"},
			Text:          "msg",
		},
		Timeouts:        Timeouts{MaxWait: 5 * time.Minute},
		ResultURLPrefix: "https://api.hunyuan.tencent.com",
		Upload: &UploadSpec{
			Flavor: UploadCOS,
			Path:   "/api/new-portal/chat/resource/genUploadInfo",
			Adapter: UploadAdapter{
				AssetURL:       "resourceUrl",
				COSBucket:      "bucketName",
				COSRegion:      "region",
				COSKey:         "location",
				COSSecretID:    "encryptTmpSecretId",
				COSSecretKey:   "encryptTmpSecretKey",
				COSToken:       "encryptToken",
				COSStartTime:   "startTime",
				COSExpiredTime: "expiredTime",
			},
		},
	}
}

// grokVideo drives the consumer image-to-video flow: base64 JSON
// upload, then one long NDJSON response from the conversation
// endpoint. The browser TLS profile is required; relative video paths
// are completed with the assets host.
func grokVideo() *Record {
	return &Record{
		Provider:    "grok",
		Category:    CategoryVideo,
		Kind:        types.TaskImageToVideo,
		BaseURL:     "https://grok.com",
		SubmitPath:  "/rest/app-chat/conversations/new",
		Auth:        auth.KindCookieSession,
		Impersonate: true,
		WaitMode:    WaitStream,
		Submit: SubmitSchema{
			Template: `{"temporary":true,"modelName":"grok-3","message":"","fileAttachments":[],"toolOverrides":{"videoGen":true}}`,
			Slots: map[Slot]string{
				SlotPrompt:      "message",
				SlotRefAssetIDs: "fileAttachments",
			},
		},
		Adapter: ResponseAdapter{
			Progress:   "result.response.streamingVideoGenerationResponse.progress",
			ResultURLs: []string{"result.response.streamingVideoGenerationResponse.videoUrl"},
		},
		Timeouts:        Timeouts{MaxWait: 10 * time.Minute},
		ResultURLPrefix: "https://assets.grok.com",
		Upload: &UploadSpec{
			Flavor: UploadJSONBase64,
			Path:   "/rest/app-chat/upload-file",
			Adapter: UploadAdapter{
				AssetID:  "fileMetadataId",
				AssetURL: "fileUri",
			},
		},
	}
}

// gagaVideo drives the consumer avatar image-to-video flow. The
// reference image goes up as a multipart asset whose reported
// dimensions feed the crop area: the largest origin-anchored 16:9
// region of the uploaded image.
func gagaVideo() *Record {
	return &Record{
		Provider:         "gaga",
		Category:         CategoryVideo,
		Kind:             types.TaskImageToVideo,
		BaseURL:          "https://gaga.art",
		SubmitPath:       "/api/v1/generations/performer",
		PollPathTemplate: "/api/v1/generations/{task_id}?chunks=true",
		Auth:             auth.KindCookieSession,
		WaitMode:         WaitPoll,
		Submit: SubmitSchema{
			Template: `{"model":"test-performer","aspectRatio":"16:9","taskType":"I2FV","taskSource":"HUMAN","source":{"type":"image"},"chunks":[{"duration":5,"conditions":[{"type":"text"}]}],"extraArgs":{"enablePromptEnhancement":true,"extraInferArgs":{"enhancementType":"i2v_performer_performer-v3-6_gemini","nSampleSteps":32,"resolution":"540p","enableWatermark":false}}}`,
			Slots: map[Slot]string{
				SlotModel:      "model",
				SlotPrompt:     "chunks.0.conditions.0.content",
				SlotRatio:      "aspectRatio",
				SlotDuration:   "chunks.0.duration",
				SlotWatermark:  "extraArgs.extraInferArgs.enableWatermark",
				SlotRefAssetID: "source.content",
				SlotCropArea:   "extraArgs.cropArea",
			},
		},
		Adapter: ResponseAdapter{
			JobID:      "id",
			Status:     "status",
			ResultURLs: []string{"resultVideoURL", "result.videoURL"},
			SubmitTime: "createTime",
			EndTime:    "estimateCompleteTime",
		},
		Terminal: TerminalStates{
			Success: []string{"Success"},
			Failure: []string{"Failed", "Error"},
			Cancel:  []string{"Canceled"},
		},
		Timeouts: Timeouts{
			Connect:      10 * time.Second,
			Read:         20 * time.Second,
			PollInterval: 3 * time.Second,
			MaxWait:      5 * time.Minute,
		},
		Upload: &UploadSpec{
			Flavor:    UploadMultipart,
			Path:      "/api/v1/assets",
			FileField: "file",
			Adapter: UploadAdapter{
				AssetID:  "id",
				AssetURL: "url",
				Width:    "width",
				Height:   "height",
			},
		},
	}
}
