// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID   = "correlation_id"
	FieldRequestID       = "request_id"
	FieldClientRequestID = "client_request_id"
	FieldTicketID        = "ticket_id"
	FieldSessionPID      = "session_pid"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldHandle    = "handle"

	// TTS domain fields
	FieldVoice       = "voice"
	FieldChunkIndex  = "chunk_index"
	FieldChunkCount  = "chunk_count"
	FieldTextBytes   = "text_bytes"
	FieldAudioBytes  = "audio_bytes"
	FieldSampleRate  = "sample_rate"
	FieldQueueDepth  = "queue_depth"
	FieldWaitMillis  = "wait_ms"

	// Resource fields
	FieldRAMPercent = "ram_percent"
	FieldCPUPercent = "cpu_percent"
	FieldRSSMB      = "rss_mb"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
