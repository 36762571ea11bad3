// Package graph holds the shared data model for one scene: the character
// roster, the camera forest, decomposed shots and their frames, reference
// artifacts, and selection results.
//
// Cameras form an index-based forest over a flat slice. A camera never owns
// its parent or children; ParentCamIdx is a back-reference into the same
// slice. Validate, Depths, Children and Roots operate on that slice.
package graph
