package audit

// Entry is one line in the hash-chained JSONL audit trail: the final
// decision of one pipeline validation. All fields are concrete types
// (no map[string]any) to guarantee deterministic json.Marshal field
// order for reproducible hashing.
type Entry struct {
	Timestamp string   `json:"ts"`
	AuditID   string   `json:"audit_id"`
	Pipeline  string   `json:"pipeline"`
	Action    string   `json:"action"`
	Allowed   bool     `json:"allowed"`
	Reasons   []string `json:"reasons"`
	PrevHash  string   `json:"prev_hash"`
}
