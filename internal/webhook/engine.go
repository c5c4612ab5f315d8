package webhook

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	admissionv1 "k8s.io/api/admission/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/periscope-mesh/periscope/internal/constants"
)

// Outcome classifies an admission decision for metrics.
type Outcome string

const (
	// OutcomePatched means the pod matched and a patch was emitted.
	OutcomePatched Outcome = "patched"

	// OutcomeSkipped means the request was allowed unmutated.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeError means the embedded object could not be processed.
	OutcomeError Outcome = "error"
)

// Engine evaluates admission requests against the match rules and computes
// mutation patches. It is stateless per request: concurrent requests share
// only the read-only configuration.
type Engine struct {
	match  MatchConfig
	inject InjectConfig
	labels []LabelPair
	logger zerolog.Logger
}

// NewEngine builds a mutation engine from validated configuration.
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	labels, err := ParseLabelPairs(cfg.Match.Labels)
	if err != nil {
		return nil, err
	}

	return &Engine{
		match:  cfg.Match,
		inject: cfg.Inject,
		labels: labels,
		logger: logger.With().Str("component", "mutation-engine").Logger(),
	}, nil
}

// Decide answers one admission request. It always returns a response: non-pod
// kinds and non-matching pods are allowed unmutated, a matching pod is
// allowed with a JSON patch, and an undecodable pod object yields an
// explicit error verdict. The cluster's webhook failure policy (fail open)
// governs everything beyond that.
func (e *Engine) Decide(req *admissionv1.AdmissionRequest) (*admissionv1.AdmissionResponse, Outcome) {
	resp := &admissionv1.AdmissionResponse{
		UID:     req.UID,
		Allowed: true,
	}

	if req.Kind.Kind != "Pod" {
		e.logger.Debug().Str("kind", req.Kind.Kind).Msg("Skipping non-Pod kind")
		return resp, OutcomeSkipped
	}

	var pod corev1.Pod
	if err := json.Unmarshal(req.Object.Raw, &pod); err != nil {
		e.logger.Warn().Err(err).Str("uid", string(req.UID)).Msg("Undecodable pod object")
		return &admissionv1.AdmissionResponse{
			UID:     req.UID,
			Allowed: false,
			Result:  &metav1.Status{Message: fmt.Sprintf("undecodable pod object: %v", err)},
		}, OutcomeError
	}

	if !e.Matches(req.Namespace, pod.Labels) {
		e.logger.Debug().
			Str("namespace", req.Namespace).
			Str("pod", pod.Name).
			Msg("Pod does not match, allowing unmutated")
		return resp, OutcomeSkipped
	}

	ops := e.BuildPatch(&pod)
	if len(ops) == 0 {
		return resp, OutcomeSkipped
	}

	patch, err := json.Marshal(ops)
	if err != nil {
		e.logger.Error().Err(err).Msg("Patch serialization failed, allowing unmutated")
		return resp, OutcomeError
	}

	patchType := admissionv1.PatchTypeJSONPatch
	resp.Patch = patch
	resp.PatchType = &patchType

	e.logger.Info().
		Str("namespace", req.Namespace).
		Str("pod", pod.Name).
		Int("ops", len(ops)).
		Msg("Mutating pod")

	return resp, OutcomePatched
}

// Matches applies the match rule: namespace equality AND at least one
// configured label pair present on the pod. An engine with no namespace or
// no label rules never matches.
func (e *Engine) Matches(namespace string, labels map[string]string) bool {
	if e.match.Namespace == "" || len(e.labels) == 0 || e.inject.EnvName == "" {
		return false
	}
	if namespace != e.match.Namespace {
		return false
	}
	for _, pair := range e.labels {
		if labels[pair.Key] == pair.Value {
			return true
		}
	}
	return false
}

// patchOp is one JSON Patch operation.
type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// BuildPatch computes the mutation for a matching pod. The result is
// deterministic for a given pod spec, and applying it to an already-patched
// pod replaces values instead of duplicating entries, so retried requests
// converge instead of growing.
func (e *Engine) BuildPatch(pod *corev1.Pod) []patchOp {
	var ops []patchOp

	envs := e.injectedEnv(pod)
	for i := range pod.Spec.Containers {
		ops = append(ops, upsertEnv(&pod.Spec.Containers[i], i, envs)...)
	}
	ops = append(ops, e.volumePatch(pod)...)

	return ops
}

// injectedEnv lists the environment variables a matching pod receives: the
// bootstrap variable plus one variable per recognized annotation, in
// deterministic order.
func (e *Engine) injectedEnv(pod *corev1.Pod) []corev1.EnvVar {
	envs := []corev1.EnvVar{{Name: e.inject.EnvName, Value: e.inject.EnvValue}}

	keys := make([]string, 0, len(pod.Annotations))
	for key := range pod.Annotations {
		if _, ok := constants.AnnotationEnvMap[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		envs = append(envs, corev1.EnvVar{
			Name:  constants.AnnotationEnvMap[key],
			Value: pod.Annotations[key],
		})
	}

	return envs
}

// upsertEnv emits patch ops setting each variable on one container:
// replace when the name exists with a different value, nothing when the
// value already matches, append otherwise.
func upsertEnv(container *corev1.Container, index int, envs []corev1.EnvVar) []patchOp {
	var ops []patchOp

	existing := make(map[string]int, len(container.Env))
	for i, item := range container.Env {
		existing[item.Name] = i
	}

	listExists := len(container.Env) > 0
	var pendingCreate []corev1.EnvVar

	for _, env := range envs {
		if i, ok := existing[env.Name]; ok {
			if container.Env[i].Value == env.Value {
				continue
			}
			ops = append(ops, patchOp{
				Op:    "replace",
				Path:  fmt.Sprintf("/spec/containers/%d/env/%d/value", index, i),
				Value: env.Value,
			})
			continue
		}

		if listExists {
			ops = append(ops, patchOp{
				Op:    "add",
				Path:  fmt.Sprintf("/spec/containers/%d/env/-", index),
				Value: env,
			})
		} else {
			pendingCreate = append(pendingCreate, env)
		}
	}

	if len(pendingCreate) > 0 {
		ops = append(ops, patchOp{
			Op:    "add",
			Path:  fmt.Sprintf("/spec/containers/%d/env", index),
			Value: pendingCreate,
		})
	}

	return ops
}

// volumePatch adds the configmap-backed volume and per-file read-only
// subPath mounts, skipping anything already present.
func (e *Engine) volumePatch(pod *corev1.Pod) []patchOp {
	var ops []patchOp

	volumePresent := false
	for _, v := range pod.Spec.Volumes {
		if v.Name == e.inject.VolumeName {
			volumePresent = true
			break
		}
	}

	if !volumePresent {
		volume := corev1.Volume{
			Name: e.inject.VolumeName,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: e.inject.ConfigMapName},
				},
			},
		}
		if len(pod.Spec.Volumes) > 0 {
			ops = append(ops, patchOp{Op: "add", Path: "/spec/volumes/-", Value: volume})
		} else {
			ops = append(ops, patchOp{Op: "add", Path: "/spec/volumes", Value: []corev1.Volume{volume}})
		}
	}

	for i := range pod.Spec.Containers {
		ops = append(ops, e.mountPatch(&pod.Spec.Containers[i], i)...)
	}

	return ops
}

func (e *Engine) mountPatch(container *corev1.Container, index int) []patchOp {
	existing := make(map[string]struct{}, len(container.VolumeMounts))
	for _, m := range container.VolumeMounts {
		existing[m.MountPath] = struct{}{}
	}

	var mounts []corev1.VolumeMount
	for _, f := range e.inject.Files {
		if _, ok := existing[f.MountPath]; ok {
			continue
		}
		mounts = append(mounts, corev1.VolumeMount{
			Name:      e.inject.VolumeName,
			MountPath: f.MountPath,
			SubPath:   f.Key,
			ReadOnly:  true,
		})
	}

	if len(mounts) == 0 {
		return nil
	}

	if len(container.VolumeMounts) > 0 {
		ops := make([]patchOp, 0, len(mounts))
		for _, m := range mounts {
			ops = append(ops, patchOp{
				Op:    "add",
				Path:  fmt.Sprintf("/spec/containers/%d/volumeMounts/-", index),
				Value: m,
			})
		}
		return ops
	}

	return []patchOp{{
		Op:    "add",
		Path:  fmt.Sprintf("/spec/containers/%d/volumeMounts", index),
		Value: mounts,
	}}
}
