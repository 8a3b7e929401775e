package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Clusterer groups lines that no pattern matched into candidate templates,
// so an operator can see which patterns are missing from the configuration.
//
// It is a small Drain tree: lines are bucketed by token count, then by their
// leading tokens, and within a leaf merged into the first cluster whose
// tokens are similar enough. Tokens that differ become wildcards.
type Clusterer struct {
	root         *clusterNode
	depth        int
	simThreshold float64
	maxChildren  int
	clusters     []*Cluster
}

type clusterNode struct {
	children map[string]*clusterNode
	clusters []*Cluster
}

// Cluster is a candidate template for unmatched lines.
type Cluster struct {
	ID       string   `json:"id"`
	Pattern  string   `json:"pattern"`
	Regex    string   `json:"suggested_regex"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
	tokens   []string
}

const (
	wildcard       = "<*>"
	maxExamples    = 3
	defaultDepth   = 4
	defaultSim     = 0.5
	defaultMaxKids = 100
)

var (
	numberToken    = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	hexToken       = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	ipToken        = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?$`)
	uuidToken      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	timestampToken = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	clockToken     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	pidToken       = regexp.MustCompile(`^[\w.-]+\[\d+\]:?$`)
)

// NewClusterer creates a Clusterer. Non-positive arguments select the
// defaults: depth 4, similarity 0.5, 100 children per node.
func NewClusterer(depth int, simThreshold float64, maxChildren int) *Clusterer {
	if depth <= 0 {
		depth = defaultDepth
	}
	if simThreshold <= 0 || simThreshold > 1 {
		simThreshold = defaultSim
	}
	if maxChildren <= 0 {
		maxChildren = defaultMaxKids
	}
	return &Clusterer{
		root:         newClusterNode(),
		depth:        depth,
		simThreshold: simThreshold,
		maxChildren:  maxChildren,
	}
}

func newClusterNode() *clusterNode {
	return &clusterNode{children: make(map[string]*clusterNode)}
}

// Add assigns line to a cluster and returns the cluster id. Blank lines
// return "".
func (c *Clusterer) Add(line string) string {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return ""
	}

	cl := c.find(tokens)
	cl.Count++
	if len(cl.Examples) < maxExamples {
		cl.Examples = append(cl.Examples, line)
	}
	return cl.ID
}

func (c *Clusterer) find(tokens []string) *Cluster {
	node := c.child(c.root, fmt.Sprintf("len_%d", len(tokens)))

	for i := 0; i < len(tokens) && i < c.depth-1; i++ {
		tok := tokens[i]
		if isVariable(tok) {
			tok = wildcard
		}
		if _, ok := node.children[tok]; !ok && len(node.children) >= c.maxChildren {
			tok = wildcard
		}
		node = c.child(node, tok)
	}

	for _, cl := range node.clusters {
		if similarity(tokens, cl.tokens) >= c.simThreshold {
			cl.tokens = merge(cl.tokens, tokens)
			cl.Pattern = strings.Join(cl.tokens, " ")
			cl.Regex = suggestRegex(cl.tokens)
			return cl
		}
	}

	toks := make([]string, len(tokens))
	for i, t := range tokens {
		if isVariable(t) {
			toks[i] = wildcard
		} else {
			toks[i] = t
		}
	}
	cl := &Cluster{
		ID:      fmt.Sprintf("C%d", len(c.clusters)+1),
		Pattern: strings.Join(toks, " "),
		Regex:   suggestRegex(toks),
		tokens:  toks,
	}
	c.clusters = append(c.clusters, cl)
	node.clusters = append(node.clusters, cl)
	return cl
}

func (c *Clusterer) child(n *clusterNode, key string) *clusterNode {
	next, ok := n.children[key]
	if !ok {
		next = newClusterNode()
		n.children[key] = next
	}
	return next
}

// Clusters returns the clusters by count, most frequent first. n <= 0
// returns all of them.
func (c *Clusterer) Clusters(n int) []Cluster {
	out := make([]Cluster, len(c.clusters))
	for i, cl := range c.clusters {
		out[i] = *cl
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len returns the number of clusters.
func (c *Clusterer) Len() int {
	return len(c.clusters)
}

// ClusterLines clusters lines with the default settings.
func ClusterLines(lines []string, n int) []Cluster {
	c := NewClusterer(0, 0, 0)
	for _, l := range lines {
		c.Add(l)
	}
	return c.Clusters(n)
}

func isVariable(tok string) bool {
	switch {
	case numberToken.MatchString(tok), hexToken.MatchString(tok),
		ipToken.MatchString(tok), uuidToken.MatchString(tok),
		timestampToken.MatchString(tok), clockToken.MatchString(tok),
		pidToken.MatchString(tok):
		return true
	}
	return strings.HasPrefix(tok, "/") && len(tok) > 20
}

// similarity is the share of positions whose tokens agree; wildcards agree
// with anything.
func similarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	maxLen, minLen := len(a), len(b)
	if minLen > maxLen {
		maxLen, minLen = minLen, maxLen
	}
	if minLen == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < minLen; i++ {
		if a[i] == wildcard || b[i] == wildcard || a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(maxLen)
}

func merge(existing, tokens []string) []string {
	n := max(len(existing), len(tokens))
	out := make([]string, n)
	for i := range out {
		if i >= len(existing) || i >= len(tokens) || existing[i] != tokens[i] {
			out[i] = wildcard
		} else {
			out[i] = existing[i]
		}
	}
	return out
}

// suggestRegex turns cluster tokens into a pattern suitable for the
// parsing configuration. Wildcards become non-space runs.
func suggestRegex(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		if t == wildcard {
			parts[i] = `\S+`
		} else {
			parts[i] = regexp.QuoteMeta(t)
		}
	}
	return "^" + strings.Join(parts, `\s+`) + "$"
}
