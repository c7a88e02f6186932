// Package guardchain validates content through configurable guard
// pipelines: size and pattern checks, PII and secret scrubbing,
// prompt-injection screening, rate limiting, and duplicate detection.
//
// The root package is a facade over the internal packages for
// in-process consumers:
//
//	pipe, err := guardchain.NewPipeline("inbound",
//		[]guardchain.Guard{limiter, dedup},
//		guardchain.WithOnError(guardchain.ErrContinue))
//	decision := pipe.Validate(ctx, userInput, guardchain.NewContext(
//		guardchain.WithUserRole("analyst")))
package guardchain

import (
	"github.com/ppiankov/guardchain/internal/config"
	"github.com/ppiankov/guardchain/internal/guard"
	"github.com/ppiankov/guardchain/internal/guards/content"
	"github.com/ppiankov/guardchain/internal/guards/ratelimit"
	"github.com/ppiankov/guardchain/internal/guards/similarity"
	"github.com/ppiankov/guardchain/internal/model"
	"github.com/ppiankov/guardchain/internal/pipeline"
	"github.com/ppiankov/guardchain/internal/store"
)

// Core decision types.
type (
	Decision = model.Decision
	Action   = model.Action
	Context  = model.Context
)

const (
	ActionAllow     = model.ActionAllow
	ActionDeny      = model.ActionDeny
	ActionTransform = model.ActionTransform
	ActionRetry     = model.ActionRetry
)

// Decision factories.
var (
	Allow     = model.Allow
	Deny      = model.Deny
	Transform = model.Transform
	Retry     = model.Retry
)

// Context construction.
var (
	NewContext   = model.NewContext
	WithModel    = model.WithModel
	WithUserRole = model.WithUserRole
	WithPurpose  = model.WithPurpose
	WithTraceID  = model.WithTraceID
	WithSeed     = model.WithSeed
	WithMetadata = model.WithMetadata
)

// Guard is the pluggable check/transform contract.
type Guard = guard.Guard

// NewGuard wraps a plain function as a Guard.
var NewGuard = guard.New

// Pipeline orchestration.
type (
	Pipeline    = pipeline.Pipeline
	ErrorPolicy = pipeline.ErrorPolicy
)

const (
	ErrDeny     = pipeline.ErrDeny
	ErrAllow    = pipeline.ErrAllow
	ErrContinue = pipeline.ErrContinue
)

var (
	NewPipeline    = pipeline.New
	WithFailFast   = pipeline.WithFailFast
	WithOnError    = pipeline.WithOnError
	WithStrictDeny = pipeline.WithStrictDeny
)

// Rate limiter guard (sliding window with block-until state).
type (
	RateLimiterConfig = ratelimit.Config
	RateLimiterOption = ratelimit.Option
)

var (
	NewRateLimiter = ratelimit.New
	WithRateStore  = ratelimit.WithStore
)

// Duplicate detector guard (exact and Jaccard near-duplicate matching).
type (
	DuplicateConfig = similarity.Config
	DuplicateOption = similarity.Option
	DetectAction    = similarity.DetectAction
)

const (
	DetectDeny = similarity.ActDeny
	DetectFlag = similarity.ActFlag
)

var (
	NewDuplicateDetector = similarity.New
	WithFingerprintStore = similarity.WithStore
)

// Stores backing the stateful guards. The in-memory implementations
// are the defaults; custom backends implement these interfaces.
type (
	RateStore        = store.RateStore
	RateState        = store.RateState
	FingerprintStore = store.FingerprintStore
	Fingerprint      = store.Fingerprint
)

var (
	NewMemoryRateStore        = store.NewMemoryRateStore
	NewMemoryFingerprintStore = store.NewMemoryFingerprintStore
	NewRedisRateStore         = store.NewRedisRateStore
)

// Content guards.
type (
	LengthConfig    = content.LengthConfig
	PIIMode         = content.PIIMode
	InjectionConfig = content.InjectionConfig
	ProfanityAction = content.ProfanityAction
)

const (
	PIIBlock  = content.PIIBlock
	PIIRedact = content.PIIRedact
	PIIFlag   = content.PIIFlag

	ProfanityBlock = content.ProfanityBlock
	ProfanityMask  = content.ProfanityMask
	ProfanityFlag  = content.ProfanityFlag
)

var (
	NewLength    = content.NewLength
	NewPII       = content.NewPII
	NewSecrets   = content.NewSecrets
	NewInjection = content.NewInjection
	NewProfanity = content.NewProfanity
	NewUppercase = content.NewUppercase
	NewPrefix    = content.NewPrefix
)

// PipelineConfig is a declarative YAML pipeline definition.
type PipelineConfig = config.Config

// LoadConfig reads a YAML pipeline definition; build the pipeline with
// its Build method.
var LoadConfig = config.Load
