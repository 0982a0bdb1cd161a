// Package timeline is the editor's project model: a media library, clips
// placed on tracks, and the transitions between them.
//
// Video clips live on even tracks (V1=0, V2=2) and audio clips on odd ones
// (A1=1, A2=3). Extracting the audio of a video clip creates an audio clip
// on the track below and links the two both ways; Linked resolves either
// side in one lookup.
//
// BuildJob turns the clips of one video track into an encoder.Job.
package timeline
