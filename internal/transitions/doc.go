// Package transitions implements the blend strategies used at clip
// boundaries, both in the preview and in export.
//
// Every strategy is registered once under a stable Kind key. Kinds are
// persisted in export jobs, so existing keys are never renamed or removed;
// new strategies are added by registering another implementation.
//
// All strategies operate on packed yuv420p frames (see package planes) and
// honor the same boundary contract: alpha 0 reproduces the outgoing frame
// and alpha 1 the incoming frame.
package transitions
