// Package videogen drives the Seedance content generation task API.
//
// A clip is produced in three steps: create a task, poll it until it reports
// succeeded or failed, then download the resulting video_url. The number of
// conditioning frames selects the model: none for text-to-video, one for
// first-frame-to-video, two for first-and-last-frame-to-video.
package videogen
