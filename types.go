package seclai

import (
	"github.com/google/uuid"
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// Source is a content source connection.
type Source struct {
	ID                   string    `json:"id,omitempty"`
	AccountID            uuid.UUID `json:"account_id"`
	Name                 string    `json:"name,omitempty"`
	SourceType           string    `json:"source_type,omitempty"`
	URL                  string    `json:"url,omitempty"`
	ContentCount         *int      `json:"content_count,omitempty"`
	ContentFilter        string    `json:"content_filter,omitempty"`
	ChunkLanguage        string    `json:"chunk_language,omitempty"`
	ChunkSize            *int      `json:"chunk_size,omitempty"`
	ChunkOverlap         *int      `json:"chunk_overlap,omitempty"`
	ChunkSeparators      string    `json:"chunk_separators,omitempty"`
	ChunkRegexSeparators *bool     `json:"chunk_regex_separators,omitempty"`
	EmbeddingModel       string    `json:"embedding_model,omitempty"`
	EmbeddingModelType   string    `json:"embedding_model_type,omitempty"`
	Dimensions           *int      `json:"dimensions,omitempty"`
	Polling              string    `json:"polling,omitempty"`
	PollingAction        string    `json:"polling_action,omitempty"`
	PollingMaxItems      *int      `json:"polling_max_items,omitempty"`
	NextPollAt           string    `json:"next_poll_at,omitempty"`
	PulledAt             string    `json:"pulled_at,omitempty"`
	Retention            *int      `json:"retention,omitempty"`
	Readonly             *bool     `json:"readonly,omitempty"`
	HasHistoricalData    *bool     `json:"has_historical_data,omitempty"`
	AvgEpisodesPerMonth  *float64  `json:"avg_episodes_per_month,omitempty"`
	AvgWordsPerEpisode   *int      `json:"avg_words_per_episode,omitempty"`
	CreatedAt            string    `json:"created_at,omitempty"`
	UpdatedAt            string    `json:"updated_at,omitempty"`
}

// SourceList is a page of sources.
type SourceList struct {
	Data       []Source   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// AgentRunRequest starts a run with RunAgent.
type AgentRunRequest struct {
	Input    string         `json:"input,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Priority *bool          `json:"priority,omitempty"`
}

// AgentRunStreamRequest starts a run with StreamAgentRun.
type AgentRunStreamRequest struct {
	Input    string         `json:"input,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AgentRun is a run as returned by the request/response endpoints.
type AgentRun struct {
	RunID      string          `json:"run_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Input      string          `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	Attempts   []AttemptRecord `json:"attempts"`
	ErrorCount int             `json:"error_count"`
	Priority   bool            `json:"priority"`
	Credits    *float64        `json:"credits,omitempty"`
}

// State converts the run into a RunState. An unrecognized status maps to
// RunStatusQueued.
func (r *AgentRun) State() RunState {
	st, _ := ParseRunStatus(r.Status)
	s := RunState{
		RunID:      r.RunID,
		Status:     st,
		Input:      r.Input,
		Output:     r.Output,
		Attempts:   r.Attempts,
		ErrorCount: r.ErrorCount,
		Priority:   r.Priority,
		Credits:    r.Credits,
	}
	for i := len(r.Attempts) - 1; i >= 0; i-- {
		if r.Attempts[i].Error != "" {
			s.Error = r.Attempts[i].Error
			break
		}
	}
	return s.clone()
}

// AgentRunList is a page of runs.
type AgentRunList struct {
	Data       []AgentRun `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ContentDetail is a content version with a window of its text.
type ContentDetail struct {
	ID                               string              `json:"id,omitempty"`
	Title                            string              `json:"title,omitempty"`
	Description                      string              `json:"description,omitempty"`
	ContentStatus                    string              `json:"content_status,omitempty"`
	ContentType                      string              `json:"content_type,omitempty"`
	ContentTypeDisplay               string              `json:"content_type_display,omitempty"`
	ContentURL                       string              `json:"content_url,omitempty"`
	ContentDuration                  *int                `json:"content_duration,omitempty"`
	ContentDurationDisplay           string              `json:"content_duration_display,omitempty"`
	ContentWordCount                 *int                `json:"content_word_count,omitempty"`
	Error                            string              `json:"error,omitempty"`
	Metadata                         []map[string]string `json:"metadata,omitempty"`
	PublishedAt                      string              `json:"published_at,omitempty"`
	PulledAt                         string              `json:"pulled_at,omitempty"`
	SourceConnectionContentVersionID string              `json:"source_connection_content_version_id,omitempty"`
	SourceConnectionID               string              `json:"source_connection_id,omitempty"`
	SourceName                       string              `json:"source_name,omitempty"`
	SourceType                       string              `json:"source_type,omitempty"`
	TextContent                      string              `json:"text_content,omitempty"`
	TextContentStart                 int                 `json:"text_content_start"`
	TextContentEnd                   int                 `json:"text_content_end"`
	TextContentTotalLength           int                 `json:"text_content_total_length"`
}

// ContentEmbedding is one embedded chunk of a content version.
type ContentEmbedding struct {
	ID            string    `json:"id,omitempty"`
	Text          string    `json:"text,omitempty"`
	TextStart     int       `json:"text_start"`
	TextEnd       int       `json:"text_end"`
	Vector        []float32 `json:"vector"`
	BatchSize     int       `json:"batch_size"`
	BatchDuration float64   `json:"batch_duration"`
}

// ContentEmbeddingList is a page of embeddings.
type ContentEmbeddingList struct {
	Data       []ContentEmbedding `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// FileUploadResponse acknowledges an upload.
type FileUploadResponse struct {
	ContentVersionID                 string `json:"content_version_id,omitempty"`
	SourceConnectionContentVersionID string `json:"source_connection_content_version_id,omitempty"`
	Filename                         string `json:"filename,omitempty"`
	Status                           string `json:"status,omitempty"`
}
