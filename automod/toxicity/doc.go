// Toxicity scoring backends (Perspective API, neutral fallback).
package toxicity
