package guard

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/afo-kingdom/chancellor/internal/logging"
)

// Status is the classification reported by Scanner.Scan.
type Status string

const (
	StatusBlocked = Status("blocked")
	StatusThreat  = Status("threat_detected")
	StatusAnomaly = Status("anomaly_detected")
	StatusClear   = Status("clear")
)

// Severity ranks injection patterns.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Pattern is one injection signature.
type Pattern struct {
	Name     string
	Severity Severity
	Expr     *regexp.Regexp
}

// DefaultPatterns is the built-in signature set.
var DefaultPatterns = []Pattern{
	{"sql_drop", SeverityCritical, regexp.MustCompile(`(?i)\b(drop|truncate)\s+(table|database)\b`)},
	{"rm_root", SeverityCritical, regexp.MustCompile(`(?i)\brm\s+-[a-z]*r[a-z]*f?\s+/(\s|$)`)},
	{"prompt_override", SeverityHigh, regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior)\s+instructions\b`)},
	{"sql_union", SeverityHigh, regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`)},
	{"script_tag", SeverityHigh, regexp.MustCompile(`(?i)<\s*script\b`)},
	{"command_substitution", SeverityMedium, regexp.MustCompile("\\$\\([^)]*\\)|`[^`]+`")},
	{"path_traversal", SeverityMedium, regexp.MustCompile(`\.\./\.\./`)},
	{"sql_tautology", SeverityMedium, regexp.MustCompile(`(?i)'\s*or\s*'?1'?\s*=\s*'?1`)},
}

// AnomalyLimits bound the "normal" shape of a request.
type AnomalyLimits struct {
	MaxChars      int
	MaxWords      int
	MaxMeanWord   float64
	AnomalyCutoff float64
}

// DefaultAnomalyLimits are tuned for short operator commands.
var DefaultAnomalyLimits = AnomalyLimits{
	MaxChars:      2000,
	MaxWords:      300,
	MaxMeanWord:   20,
	AnomalyCutoff: 0.5,
}

// Threat is one matched pattern.
type Threat struct {
	Pattern  string   `json:"pattern"`
	Severity Severity `json:"severity"`
	Match    string   `json:"match"`
}

// ScanResult is the outcome of Scan.
type ScanResult struct {
	Status Status `json:"status"`
	// Classification is the highest matched severity, empty when no threat matched.
	Classification Severity `json:"classification,omitempty"`
	Threats        []Threat `json:"threats,omitempty"`
	AnomalyScore   float64  `json:"anomaly_score"`
	// AutoBlocked is set when this scan added the source to the blocklist.
	AutoBlocked bool `json:"auto_blocked,omitempty"`
}

// ToMap renders the result for GraphState outputs.
func (r ScanResult) ToMap() map[string]any {
	threats := make([]any, 0, len(r.Threats))
	for _, t := range r.Threats {
		threats = append(threats, map[string]any{
			"pattern":  t.Pattern,
			"severity": string(t.Severity),
			"match":    t.Match,
		})
	}
	return map[string]any{
		"status":         string(r.Status),
		"classification": string(r.Classification),
		"threats":        threats,
		"anomaly_score":  r.AnomalyScore,
		"auto_blocked":   r.AutoBlocked,
	}
}

// Scanner classifies inbound requests. The blocklist is shared by every run
// using the same Scanner and is guarded by a mutex.
type Scanner struct {
	mu        sync.RWMutex
	blocklist map[string]struct{}
	patterns  []Pattern
	limits    AnomalyLimits
	autoBlock Severity
	logger    *slog.Logger
}

// ScannerOption configures the Scanner.
type ScannerOption func(*Scanner)

// WithBlocklist seeds the blocked sources.
func WithBlocklist(sources ...string) ScannerOption {
	return func(s *Scanner) {
		for _, src := range sources {
			if src = normalizeSource(src); src != "" {
				s.blocklist[src] = struct{}{}
			}
		}
	}
}

// WithPatterns replaces the signature set.
func WithPatterns(patterns ...Pattern) ScannerOption {
	return func(s *Scanner) {
		s.patterns = patterns
	}
}

// WithAnomalyLimits overrides the anomaly heuristic bounds.
func WithAnomalyLimits(limits AnomalyLimits) ScannerOption {
	return func(s *Scanner) {
		s.limits = limits
	}
}

// WithAutoBlockSeverity sets the classification at which a source is
// blocklisted. An empty severity disables auto-blocking.
func WithAutoBlockSeverity(sev Severity) ScannerOption {
	return func(s *Scanner) {
		s.autoBlock = sev
	}
}

// WithScannerLogger sets the logger.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a Scanner with the default signatures.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		blocklist: make(map[string]struct{}),
		patterns:  DefaultPatterns,
		limits:    DefaultAnomalyLimits,
		autoBlock: SeverityCritical,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan classifies a request coming from source with free text.
func (s *Scanner) Scan(source, text string) ScanResult {
	return s.ScanAll(source, text)
}

// ScanAll classifies a request carrying several free-text fields.
// Blocked sources short-circuit; otherwise every text is matched against the
// signatures before the anomaly heuristic, which keeps the highest score.
func (s *Scanner) ScanAll(source string, texts ...string) ScanResult {
	if s.IsBlocked(source) {
		return ScanResult{Status: StatusBlocked}
	}

	var res ScanResult
	for _, text := range texts {
		for _, p := range s.patterns {
			if m := p.Expr.FindString(text); m != "" {
				res.Threats = append(res.Threats, Threat{Pattern: p.Name, Severity: p.Severity, Match: m})
				if p.Severity.rank() > res.Classification.rank() {
					res.Classification = p.Severity
				}
			}
		}
	}
	if len(res.Threats) > 0 {
		res.Status = StatusThreat
		if s.autoBlock != "" && res.Classification.rank() >= s.autoBlock.rank() && normalizeSource(source) != "" {
			s.Block(source)
			res.AutoBlocked = true
			s.logger.Warn("source auto-blocked", "source", source, "classification", res.Classification)
		}
		return res
	}

	for _, text := range texts {
		res.AnomalyScore = max(res.AnomalyScore, s.anomalyScore(text))
	}
	if res.AnomalyScore >= s.limits.AnomalyCutoff {
		res.Status = StatusAnomaly
		return res
	}
	res.Status = StatusClear
	return res
}

// anomalyScore is a crude 0..1 measure built from length, word count and
// mean word length. Each bound exceeded contributes half a point.
func (s *Scanner) anomalyScore(text string) float64 {
	words := strings.Fields(text)
	var score float64
	if s.limits.MaxChars > 0 && len(text) > s.limits.MaxChars {
		score += 0.5
	}
	if s.limits.MaxWords > 0 && len(words) > s.limits.MaxWords {
		score += 0.5
	}
	if len(words) > 0 && s.limits.MaxMeanWord > 0 {
		total := 0
		for _, w := range words {
			total += len(w)
		}
		if float64(total)/float64(len(words)) > s.limits.MaxMeanWord {
			score += 0.5
		}
	}
	return min(score, 1.0)
}

// Block adds source to the blocklist.
func (s *Scanner) Block(source string) {
	source = normalizeSource(source)
	if source == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocklist[source] = struct{}{}
}

// Unblock removes source from the blocklist.
func (s *Scanner) Unblock(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocklist, normalizeSource(source))
}

// IsBlocked reports whether source is on the blocklist.
func (s *Scanner) IsBlocked(source string) bool {
	source = normalizeSource(source)
	if source == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocklist[source]
	return ok
}

// Blocklist returns the blocked sources, sorted.
func (s *Scanner) Blocklist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blocklist))
	for src := range s.blocklist {
		out = append(out, src)
	}
	slices.Sort(out)
	return out
}

func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
