// Package constants defines shared configuration constants.
package constants

import "time"

// Environment variables consumed by the profiling controller. The webhook
// injects these from pod annotations; they take precedence over the config
// document.
const (
	EnvRanges       = "PERISCOPE_PROFILER_RANGES"
	EnvActivities   = "PERISCOPE_PROFILER_ACTIVITIES"
	EnvRecordShapes = "PERISCOPE_PROFILER_RECORD_SHAPES"
	EnvWithStack    = "PERISCOPE_PROFILER_WITH_STACK"
	EnvMemory       = "PERISCOPE_PROFILER_MEMORY"
	EnvOutput       = "PERISCOPE_PROFILER_OUTPUT"
	EnvExportTrace  = "PERISCOPE_PROFILER_EXPORT_TRACE"
	EnvDebug        = "PERISCOPE_PROFILER_DEBUG"
	EnvTargetModule = "PERISCOPE_PROFILER_TARGET_MODULE"
	EnvTargetSymbol = "PERISCOPE_PROFILER_TARGET_SYMBOL"
)

// AnnotationDomain prefixes every pod annotation the mutation engine
// recognizes.
const AnnotationDomain = "profiler.periscope.io"

// AnnotationEnvMap maps recognized pod annotations to the environment
// variables the profiling controller reads. Annotations outside this table
// are ignored by the mutation engine.
var AnnotationEnvMap = map[string]string{
	AnnotationDomain + "/ranges":        EnvRanges,
	AnnotationDomain + "/activities":    EnvActivities,
	AnnotationDomain + "/record-shapes": EnvRecordShapes,
	AnnotationDomain + "/with-stack":    EnvWithStack,
	AnnotationDomain + "/memory":        EnvMemory,
	AnnotationDomain + "/output":        EnvOutput,
	AnnotationDomain + "/export-trace":  EnvExportTrace,
	AnnotationDomain + "/debug":         EnvDebug,
}

// Profiler defaults.
const (
	// DefaultRanges is the recording window applied when no ranges are
	// configured anywhere.
	DefaultRanges = "100-150"

	// DefaultOutputPattern names exported trace files. {pid} and {rank}
	// are substituted at export time.
	DefaultOutputPattern = "trace_pid{pid}_rank{rank}.json"

	// DefaultTargetModule is the module whose load triggers interception.
	DefaultTargetModule = "gpu-worker"

	// DefaultTargetSymbol is the method slot wrapped inside the target module.
	DefaultTargetSymbol = "Worker.ExecuteModel"

	// DefaultConfigPath is where the webhook mounts the profiler config
	// document inside workload containers.
	DefaultConfigPath = "/etc/periscope/profiler.yaml"

	// DefaultSampleInterval is the recorder's process-stat sampling cadence
	// while a window is open.
	DefaultSampleInterval = 250 * time.Millisecond
)

// Webhook defaults.
const (
	DefaultWebhookPort = 8443

	DefaultTLSCertFile = "/tls/tls.crt"
	DefaultTLSKeyFile  = "/tls/tls.key"

	// DefaultInjectVolumeName is the pod volume backed by the bootstrap
	// configmap.
	DefaultInjectVolumeName = "periscope-files"

	// DefaultInjectConfigMapName is the cluster-scoped configmap holding the
	// bootstrap files.
	DefaultInjectConfigMapName = "periscope-files"

	// DefaultReadTimeout bounds admission request reads.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds admission response writes.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Rank detection. Workers in a tensor-parallel group are told their ordinal
// through one of these variables; the first one set wins.
var RankEnvVars = []string{"RANK", "LOCAL_RANK"}
