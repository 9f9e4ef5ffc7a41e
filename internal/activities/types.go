package activities

type DocumentInput struct {
	DocumentID string `json:"document_id"`
}

type ClaimOutput struct {
	Claimed bool   `json:"claimed"`
	Status  string `json:"status"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type RecordTextInput struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

type FailDocumentInput struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type DocumentStatusOutput struct {
	Status string `json:"status"`
}
