package pubsubstore

import (
	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	dispatchpkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/dispatch"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
	jsoncodec "github.com/GeorgeSapkin/pubsub-store/internal/runtime/jsoncodec"
	loggingpkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/logging"
	metricspkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/metrics"
	modelpkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/model"
	providerpkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/provider"
	schemapkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	storepkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/store"
	subjectpkg "github.com/GeorgeSapkin/pubsub-store/internal/runtime/subject"
	transportpkg "github.com/GeorgeSapkin/pubsub-store/transport"
	memorytransport "github.com/GeorgeSapkin/pubsub-store/transport/memory"
	natstransport "github.com/GeorgeSapkin/pubsub-store/transport/nats"
)

type (
	Schema   = schemapkg.Schema
	FieldMap = schemapkg.FieldMap
	TypeRefs = schemapkg.TypeRefs

	SubjectOptions  = subjectpkg.Options
	SubjectPrefixes = subjectpkg.Prefixes
	SubjectPair     = subjectpkg.Pair
	SubjectTuple    = subjectpkg.Tuple

	Transport      = transportpkg.Transport
	Handler        = transportpkg.Handler
	SubscriptionID = transportpkg.SubscriptionID

	NATSTransport   = natstransport.Transport
	MemoryTransport = memorytransport.Transport

	Model         = modelpkg.Model
	BuildModel    = modelpkg.BuildModel
	FindOptions   = modelpkg.FindOptions
	UpdateOptions = modelpkg.UpdateOptions
	MemoryModel   = modelpkg.Memory

	Store        = storepkg.Store
	StoreOptions = storepkg.Options

	Provider         = providerpkg.Provider
	ProviderOptions  = providerpkg.Options
	ProviderFindOptions = providerpkg.FindOptions
	Listener         = providerpkg.Listener
	ListenerHandle   = providerpkg.ListenerHandle
	Stream           = providerpkg.Stream
	ObjectReader     = providerpkg.ObjectReader
	ObjectWriter     = providerpkg.ObjectWriter

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	Dispatch = metricspkg.Dispatch
	Hooks    = dispatchpkg.Hooks

	CountRequest  = envelope.CountRequest
	CreateRequest = envelope.CreateRequest
	FindRequest   = envelope.FindRequest
	UpdateRequest = envelope.UpdateRequest

	DecodeError  = rterrors.DecodeError
	TimeoutError = rterrors.TimeoutError
	RemoteError  = rterrors.RemoteError
	StreamError  = rterrors.StreamError
)

var (
	BuildSubjects = subjectpkg.Build

	NewStore    = storepkg.New
	NewProvider = providerpkg.New

	NewMemoryModel      = modelpkg.NewMemory
	NewMemoryBuildModel = modelpkg.NewMemoryBuildModel

	NewMemoryTransport = memorytransport.New
	ConnectNATS        = natstransport.Connect
	NewNATSTransport   = natstransport.New

	NewDispatchMetrics = metricspkg.NewDispatch

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	EvaluateSchema       = schemapkg.Evaluate
	HasMetadataDeleted   = schemapkg.HasMetadataDeleted
	DefaultConditions    = schemapkg.DefaultConditions
	MergeConditions      = schemapkg.MergeConditions

	ErrSchemaNameRequired = rterrors.ErrSchemaNameRequired
	ErrTransportRequired  = rterrors.ErrTransportRequired
	ErrBuildModelRequired = rterrors.ErrBuildModelRequired
	ErrStoreAlreadyOpen   = rterrors.ErrStoreAlreadyOpen
	ErrStoreNotOpen       = rterrors.ErrStoreNotOpen
	ErrProviderNoMetadata = rterrors.ErrProviderNoMetadata
	ErrConditionsRequired = rterrors.ErrConditionsRequired
	ErrObjectRequired     = rterrors.ErrObjectRequired
	ErrIDRequired         = rterrors.ErrIDRequired
	ErrHandlerRequired    = rterrors.ErrHandlerRequired
)

// NewEntryServiceLogger wraps an EntryLoggerAdapter-shaped logger (for
// example a logrus.Entry) so it can be consumed as a ServiceLogger.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
