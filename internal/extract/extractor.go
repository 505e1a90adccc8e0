package extract

import (
	"regexp"
	"strings"

	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

// field identifies one structured slot of a ConnectionAlert draft.
type field int

const (
	fieldPID field = iota
	fieldPath
	fieldArgs
	fieldIP
	fieldPortProto
	fieldHostname
)

// defaultLabels maps the dialog's known field labels (lowercased) to the
// field whose value follows them. The dialog is not contractually stable,
// so this set is a representative minimum — the rules file can extend it
// and the raw fragments always ride along as the safety net.
var defaultLabels = map[string]field{
	"pid:":           fieldPID,
	"process id:":    fieldPID,
	"path:":          fieldPath,
	"process path:":  fieldPath,
	"args:":          fieldArgs,
	"arguments:":     fieldArgs,
	"ip address:":    fieldIP,
	"address:":       fieldIP,
	"port/protocol:": fieldPortProto,
	"port:":          fieldPortProto,
	"dns:":           fieldHostname,
	"(reverse) dns:": fieldHostname,
	"reverse dns:":   fieldHostname,
}

// defaultNameExclusions are dialog chrome strings that look like bare
// process names but never are.
var defaultNameExclusions = map[string]struct{}{
	"alert":      {},
	"allow":      {},
	"block":      {},
	"deny":       {},
	"once":       {},
	"forever":    {},
	"details":    {},
	"connection": {},
	"attempting": {},
	"outgoing":   {},
	"virustotal": {},
	"ancestry":   {},
	"signed":     {},
	"unsigned":   {},
	"notarized":  {},
}

// knownPathRoots anchor the rooted-path heuristic. A fragment starting with
// "/" qualifies as a process path only when it contains one of these.
var knownPathRoots = []string{
	"/bin/",
	"/Applications/",
	"/Library/",
	"/usr/",
	"/System/",
}

var (
	ipv4Pattern      = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
	portProtoPattern = regexp.MustCompile(`^(\d{1,5})\s*\((TCP|UDP)\)$`)
	pidPattern       = regexp.MustCompile(`^\d{1,7}$`)
	hostnamePattern  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-]*(\.[a-zA-Z0-9\-]+)+$`)
)

// knownTLDSuffixes close the hostname heuristic: a dotted token counts as a
// reverse-DNS name only when it ends in one of these.
var knownTLDSuffixes = []string{
	".com", ".net", ".org", ".io", ".dev", ".app", ".co", ".ai",
	".cloud", ".edu", ".gov", ".me", ".tv", ".info", ".us", ".uk", ".de",
	".arpa",
}

// maxBareNameLen bounds the bare-token process-name heuristic.
const maxBareNameLen = 48

// Rules overrides the extractor's built-in label and exclusion sets.
// Zero-value fields keep the defaults.
type Rules struct {
	Labels         map[string]string // label text -> field name (pid|path|args|ip|port|dns)
	NameExclusions []string
}

// Extractor turns an ordered fragment list into a ConnectionAlert draft.
type Extractor struct {
	labels     map[string]field
	exclusions map[string]struct{}
	logger     *zap.Logger
}

// New creates an extractor with the built-in label set.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		labels:     defaultLabels,
		exclusions: defaultNameExclusions,
		logger:     logger,
	}
}

// NewWithRules creates an extractor with rules-file overrides applied on
// top of the defaults. Unknown field names in the rules are skipped.
func NewWithRules(rules Rules, logger *zap.Logger) *Extractor {
	e := New(logger)

	if len(rules.Labels) > 0 {
		labels := make(map[string]field, len(defaultLabels)+len(rules.Labels))
		for k, v := range defaultLabels {
			labels[k] = v
		}
		for label, name := range rules.Labels {
			f, ok := fieldByName(name)
			if !ok {
				logger.Warn("rules file names an unknown field, skipping label",
					zap.String("label", label),
					zap.String("field", name),
				)
				continue
			}
			labels[strings.ToLower(label)] = f
		}
		e.labels = labels
	}

	if len(rules.NameExclusions) > 0 {
		exclusions := make(map[string]struct{}, len(defaultNameExclusions)+len(rules.NameExclusions))
		for k := range defaultNameExclusions {
			exclusions[k] = struct{}{}
		}
		for _, word := range rules.NameExclusions {
			exclusions[strings.ToLower(word)] = struct{}{}
		}
		e.exclusions = exclusions
	}

	return e
}

func fieldByName(name string) (field, bool) {
	switch strings.ToLower(name) {
	case "pid":
		return fieldPID, true
	case "path":
		return fieldPath, true
	case "args":
		return fieldArgs, true
	case "ip":
		return fieldIP, true
	case "port":
		return fieldPortProto, true
	case "dns":
		return fieldHostname, true
	default:
		return 0, false
	}
}

// Extract runs the two passes over the fragments and returns a best-effort
// draft. It never fails: fields the heuristic cannot place stay empty, and
// the raw fragments are retained on the draft regardless. Callers must
// treat a draft with an empty IP address as inconclusive.
func (e *Extractor) Extract(fragments []string) alert.ConnectionAlert {
	draft := alert.New()
	draft.RawFragments = fragments

	consumed := make([]bool, len(fragments))
	e.labelPass(fragments, consumed, &draft)
	bareName := e.patternPass(fragments, consumed, &draft)

	// A path-derived name always beats the bare-token heuristic, no matter
	// which fragment appeared first.
	if draft.ProcessName == "" {
		if draft.ProcessPath != "" {
			draft.ProcessName = lastPathSegment(draft.ProcessPath)
		} else {
			draft.ProcessName = bareName
		}
	}

	return draft
}

// labelPass scans for known labels and consumes the NEXT fragment as that
// field's value. First assignment to a field wins.
func (e *Extractor) labelPass(fragments []string, consumed []bool, draft *alert.ConnectionAlert) {
	for i := 0; i < len(fragments)-1; i++ {
		f, ok := e.labels[strings.ToLower(strings.TrimSpace(fragments[i]))]
		if !ok {
			continue
		}
		value := strings.TrimSpace(fragments[i+1])
		if value == "" {
			continue
		}
		if e.assign(draft, f, value) {
			consumed[i] = true
			consumed[i+1] = true
			i++ // the value fragment is spent
		}
	}
}

// patternPass classifies fragments the label pass did not consume by their
// textual shape. Each fragment is matched against exactly one rule; if that
// rule's field is already filled the fragment is discarded, never handed to
// a weaker rule. The first plausible bare process name is returned rather
// than assigned — the caller decides between it and a path-derived name.
func (e *Extractor) patternPass(fragments []string, consumed []bool, draft *alert.ConnectionAlert) string {
	bareName := ""
	for i, frag := range fragments {
		if consumed[i] {
			continue
		}
		frag = strings.TrimSpace(frag)

		switch {
		case isIPv4(frag):
			if draft.IPAddress == "" {
				draft.IPAddress = frag
			}

		case portProtoPattern.MatchString(frag):
			if draft.Port == "" {
				m := portProtoPattern.FindStringSubmatch(frag)
				draft.Port = m[1]
				draft.Protocol = m[2]
			}

		case isProcessPath(frag):
			if draft.ProcessPath == "" {
				draft.ProcessPath = frag
			}

		case isHostname(frag):
			if draft.Hostname == "" {
				draft.Hostname = frag
			}

		case pidPattern.MatchString(frag):
			if draft.ProcessID == "" {
				draft.ProcessID = frag
			}

		case e.isBareName(frag):
			if bareName == "" {
				bareName = frag
			}
		}
	}
	return bareName
}

// assign writes value into the draft field unless already filled.
// Returns whether the value was taken.
func (e *Extractor) assign(draft *alert.ConnectionAlert, f field, value string) bool {
	switch f {
	case fieldPID:
		if draft.ProcessID != "" {
			return false
		}
		draft.ProcessID = value
	case fieldPath:
		if draft.ProcessPath != "" {
			return false
		}
		draft.ProcessPath = value
	case fieldArgs:
		if draft.ProcessArgs != "" {
			return false
		}
		draft.ProcessArgs = value
	case fieldIP:
		if draft.IPAddress != "" {
			return false
		}
		draft.IPAddress = value
	case fieldPortProto:
		if draft.Port != "" {
			return false
		}
		if m := portProtoPattern.FindStringSubmatch(value); m != nil {
			draft.Port = m[1]
			draft.Protocol = m[2]
		} else {
			draft.Port = value
		}
	case fieldHostname:
		if draft.Hostname != "" {
			return false
		}
		draft.Hostname = value
	}
	return true
}

func isIPv4(s string) bool {
	m := ipv4Pattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		if len(octet) > 1 && octet[0] == '0' {
			return false
		}
		// Three digits max per the pattern; reject > 255.
		if len(octet) == 3 && octet > "255" {
			return false
		}
	}
	return true
}

func isProcessPath(s string) bool {
	if !strings.HasPrefix(s, "/") {
		return false
	}
	for _, root := range knownPathRoots {
		if strings.Contains(s, root) {
			return true
		}
	}
	return false
}

func isHostname(s string) bool {
	if strings.HasPrefix(s, "/") || !hostnamePattern.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	for _, suffix := range knownTLDSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// isBareName reports whether a fragment plausibly names a process on its
// own: short, no whitespace, slash, or colon, and not dialog chrome.
func (e *Extractor) isBareName(s string) bool {
	if s == "" || len(s) > maxBareNameLen {
		return false
	}
	if strings.ContainsAny(s, " \t/:") {
		return false
	}
	if _, excluded := e.exclusions[strings.ToLower(s)]; excluded {
		return false
	}
	// Pure numbers are pids or ports, dotted quads are addresses.
	if pidPattern.MatchString(s) || isIPv4(s) {
		return false
	}
	return true
}

func lastPathSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
