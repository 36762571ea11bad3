// Package pipeline drives one scene from script to extended camera set.
//
// Stages run strictly in order and each one completes for the whole scene
// before the next starts. Per-item work inside a stage (shots, frames,
// characters, child cameras) fans out under a concurrency limit; siblings
// are never cancelled when one fails, and the stage reports every failed
// index together.
//
// Frame work is grouped in waves by camera-tree depth. A child camera can
// only be conditioned on its reference still once the transition from its
// parent has been rendered, so the segment ReferencesSelected,
// ImagesSynthesized, ShotsAnimated, TransitionsSynthesized, CamerasExtended
// repeats once per depth. ShotsAnimated renders each shot's clip from its
// first frame, or from its first and last frame unless the variation is
// small. The plan is saved to plan.json after every stage so a failed
// run can resume where it stopped.
package pipeline
