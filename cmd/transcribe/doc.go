// Package main hosts the transcribe CLI.
//
// The Cobra command tree runs one input through the pipeline from a terminal
// (run), reports external tool availability (check), and scaffolds or prints
// configuration (config). Pipeline behaviour lives in the internal packages;
// commands here only resolve configuration and render results.
package main
