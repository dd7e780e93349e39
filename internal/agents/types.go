package agents

// IntentType classifies what a turn is asking for.
type IntentType string

const (
	IntentDataQuery IntentType = "data_query"
	IntentGeneral   IntentType = "general_question"
)

// PlotKind identifies the chart families the plot generator can build.
type PlotKind string

const (
	PlotBar       PlotKind = "bar"
	PlotLine      PlotKind = "line"
	PlotScatter   PlotKind = "scatter"
	PlotHistogram PlotKind = "histogram"
)

// Message is one conversational line handed to a capability for context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Plan is the planner's structured decision for one turn: what the user wants,
// whether a chart is needed, and whether previously fetched data can be reused.
type Plan struct {
	Intent                IntentType `json:"intent_type"`
	NeedsClarification    bool       `json:"requires_clarification"`
	ClarificationQuestion string     `json:"clarification_question,omitempty"`
	NeedsPlot             bool       `json:"requires_plot"`
	PlotKind              PlotKind   `json:"plot_type,omitempty"`
	UseCachedData         bool       `json:"use_cached_data"`
	CacheKey              string     `json:"cached_data_key,omitempty"`
	Reasoning             string     `json:"reasoning"`
}

// NeedsData reports whether executing this plan requires fetched rows.
// Data queries always do; general questions only when they want a chart.
func (p *Plan) NeedsData() bool {
	return p.Intent == IntentDataQuery || (p.Intent == IntentGeneral && p.NeedsPlot)
}

// PlanResult is the planner's union result: either a complete Plan or a
// clarification question that must go back to the user before planning can
// succeed. Exactly one side is set.
type PlanResult struct {
	Plan          *Plan
	Clarification string
}

// IsClarification reports whether the planner asked a question instead of
// producing a plan.
func (r PlanResult) IsClarification() bool {
	return r.Plan == nil
}

// GeneratedQuery is the query generator's union result: SQL with its
// explanation, or a clarification question when the schema cannot support the
// request as asked.
type GeneratedQuery struct {
	SQL                   string `json:"sql_query"`
	Explanation           string `json:"explanation"`
	NeedsClarification    bool   `json:"requires_clarification,omitempty"`
	ClarificationQuestion string `json:"clarification_question,omitempty"`
}

// FetchResult is the outcome of executing one generated query.
type FetchResult struct {
	Success  bool             `json:"success"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Error    string           `json:"error,omitempty"`
	RowCount int              `json:"row_count"`
}

// QueryOutcome wraps a FetchResult with the SQL that produced it. After the
// fetch stage has exhausted its retries it may escalate to a clarification
// instead of a hard failure; NeedsClarification carries that signal.
type QueryOutcome struct {
	SQL                   string      `json:"sql_query"`
	Result                FetchResult `json:"query_result"`
	Explanation           string      `json:"explanation"`
	NeedsClarification    bool        `json:"requires_clarification,omitempty"`
	ClarificationQuestion string      `json:"clarification_question,omitempty"`
}

// Synthesis is the final user-facing rendering of a turn.
type Synthesis struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Columns optionally narrows which result columns a chart should use.
	Columns []string `json:"columns,omitempty"`
}
