package modelq

// ResultSet is the paged result of List: Total reflects the count of all
// matching rows ignoring skip/take, Records holds at most the requested
// take.
type ResultSet struct {
	Total   int                      `json:"total"`
	Skip    int                      `json:"skip"`
	Records []map[string]interface{} `json:"records"`
}
