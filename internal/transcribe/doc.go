// Package transcribe converts recorded call audio into text through an
// external speech-to-text service.
package transcribe
