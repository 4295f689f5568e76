package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/creator-discovery-api/models"
)

// memCreatorStore is an in-memory CreatorDatabase understanding the subset of the
// query language BuildFilter and BuildSort produce
type memCreatorStore struct {
	mu   sync.Mutex
	docs []bson.M

	findErr     error
	countErr    error
	metricsErr  error
	distinctErr error

	// findHook runs at the start of every Find, outside the store lock
	findHook func(filter interface{})

	finds      int
	counts     int
	summaries  int
	lastFilter interface{}
}

func newMemCreatorStore(docs ...bson.M) *memCreatorStore {
	return &memCreatorStore{docs: docs}
}

func (s *memCreatorStore) setErrors(find, count, metrics error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr, s.countErr, s.metricsErr = find, count, metrics
}

func (s *memCreatorStore) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func (s *memCreatorStore) FindOne(_ context.Context, filter interface{}) (bson.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if matches(d, asM(filter)) {
			return bson.Marshal(d)
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s *memCreatorStore) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) ([]bson.Raw, error) {
	s.mu.Lock()
	hook := s.findHook
	s.mu.Unlock()
	if hook != nil {
		hook(filter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	s.lastFilter = filter
	if s.findErr != nil {
		return nil, s.findErr
	}

	var matched []bson.M
	for _, d := range s.docs {
		if matches(d, asM(filter)) {
			matched = append(matched, d)
		}
	}

	var skip, limit int64
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			sortDocs(matched, o.Sort.(bson.D))
		}
		if o.Skip != nil {
			skip = *o.Skip
		}
		if o.Limit != nil {
			limit = *o.Limit
		}
	}
	if skip > int64(len(matched)) {
		skip = int64(len(matched))
	}
	matched = matched[skip:]
	if limit > 0 && limit < int64(len(matched)) {
		matched = matched[:limit]
	}

	out := make([]bson.Raw, 0, len(matched))
	for _, d := range matched {
		b, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memCreatorStore) CountDocuments(_ context.Context, filter interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, d := range s.docs {
		if matches(d, asM(filter)) {
			n++
		}
	}
	return n, nil
}

func (s *memCreatorStore) Distinct(_ context.Context, field string, filter interface{}) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.distinctErr != nil {
		return nil, s.distinctErr
	}
	seen := map[string]bool{}
	var out []string
	for _, d := range s.docs {
		if !matches(d, asM(filter)) {
			continue
		}
		if v, ok := d[field].(string); ok && v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memCreatorStore) SummarizeMetrics(_ context.Context, filter interface{}) (models.MetricTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries++
	if s.metricsErr != nil {
		return models.MetricTotals{}, s.metricsErr
	}
	var t models.MetricTotals
	for _, d := range s.docs {
		if !matches(d, asM(filter)) {
			continue
		}
		t.Count++
		t.Followers += metricNumber(d, fieldFollowers)
		t.Views += metricNumber(d, fieldAvgViews)
		t.Engagement += metricNumber(d, fieldEngagement)
	}
	return t, nil
}

func asM(filter interface{}) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter.(bson.M)
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range cond.([]bson.M) {
				if !matches(doc, sub) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range cond.([]bson.M) {
				if matches(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$expr":
			if b, _ := evalExpr(doc, nil, cond).(bool); !b {
				return false
			}
		default:
			v, ok := lookupPath(doc, key)
			if !matchCond(v, ok, cond) {
				return false
			}
		}
	}
	return true
}

func lookupPath(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func matchCond(v interface{}, present bool, cond interface{}) bool {
	ops, isOps := cond.(bson.M)
	if !isOps {
		return present && reflect.DeepEqual(v, cond)
	}
	for op, arg := range ops {
		switch op {
		case "$in":
			s, ok := v.(string)
			if !present || !ok || !containsString(arg.([]string), s) {
				return false
			}
		case "$gte", "$lte", "$lt":
			n, ok := toFloat(v)
			bound, _ := toFloat(arg)
			if !present || !ok {
				return false
			}
			if (op == "$gte" && n < bound) || (op == "$lte" && n > bound) || (op == "$lt" && n >= bound) {
				return false
			}
		default:
			panic(fmt.Sprintf("memCreatorStore: unsupported operator %s", op))
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func metricNumber(doc bson.M, field string) float64 {
	n, _ := evalExpr(doc, nil, models.MetricValueExpr(field)).(float64)
	return n
}

// missing marks a field path that does not resolve
type missing struct{}

// evalExpr evaluates the aggregation operators models.MetricValueExpr and
// rangeClause produce
func evalExpr(doc bson.M, vars map[string]interface{}, e interface{}) interface{} {
	switch x := e.(type) {
	case string:
		if strings.HasPrefix(x, "$$") {
			return vars[strings.TrimPrefix(x, "$$")]
		}
		if strings.HasPrefix(x, "$") {
			if v, ok := lookupPath(doc, strings.TrimPrefix(x, "$")); ok {
				return v
			}
			return missing{}
		}
		return x
	case bson.M:
		if len(x) != 1 {
			panic(fmt.Sprintf("memCreatorStore: expected one operator, got %v", x))
		}
		for op, arg := range x {
			return evalOperator(doc, vars, op, arg)
		}
	}
	return e
}

func evalOperator(doc bson.M, vars map[string]interface{}, op string, arg interface{}) interface{} {
	eval := func(e interface{}) interface{} { return evalExpr(doc, vars, e) }
	switch op {
	case "$let":
		spec := arg.(bson.M)
		scope := map[string]interface{}{}
		for k, v := range vars {
			scope[k] = v
		}
		for k, v := range spec["vars"].(bson.M) {
			scope[k] = eval(v)
		}
		return evalExpr(doc, scope, spec["in"])
	case "$ifNull":
		args := arg.(bson.A)
		for _, a := range args[:len(args)-1] {
			if v := eval(a); !isNullish(v) {
				return v
			}
		}
		return eval(args[len(args)-1])
	case "$switch":
		spec := arg.(bson.M)
		for _, b := range spec["branches"].(bson.A) {
			branch := b.(bson.M)
			if ok, _ := eval(branch["case"]).(bool); ok {
				return eval(branch["then"])
			}
		}
		return eval(spec["default"])
	case "$and":
		for _, a := range arg.(bson.A) {
			if ok, _ := eval(a).(bool); !ok {
				return false
			}
		}
		return true
	case "$isNumber":
		_, ok := toFloat(eval(arg))
		return ok
	case "$toDouble":
		n, _ := toFloat(eval(arg))
		return n
	case "$type":
		return typeName(eval(arg))
	case "$eq", "$ne":
		args := arg.(bson.A)
		a, b := eval(args[0]), eval(args[1])
		eq := reflect.DeepEqual(a, b) || (isNullish(a) && isNullish(b))
		return eq == (op == "$eq")
	case "$gte", "$lte":
		args := arg.(bson.A)
		a, aok := toFloat(eval(args[0]))
		b, bok := toFloat(eval(args[1]))
		if !aok || !bok {
			return false
		}
		if op == "$gte" {
			return a >= b
		}
		return a <= b
	case "$trim":
		s, _ := eval(arg.(bson.M)["input"]).(string)
		return strings.TrimSpace(s)
	case "$replaceAll":
		spec := arg.(bson.M)
		s, _ := eval(spec["input"]).(string)
		return strings.ReplaceAll(s, spec["find"].(string), spec["replacement"].(string))
	case "$convert":
		spec := arg.(bson.M)
		if spec["to"] != "double" {
			panic(fmt.Sprintf("memCreatorStore: unsupported $convert target %v", spec["to"]))
		}
		v := eval(spec["input"])
		if isNullish(v) {
			return spec["onNull"]
		}
		if n, ok := toFloat(v); ok {
			return n
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n
			}
		}
		return spec["onError"]
	}
	panic(fmt.Sprintf("memCreatorStore: unsupported expression operator %s", op))
}

func isNullish(v interface{}) bool {
	if v == nil {
		return true
	}
	_, ok := v.(missing)
	return ok
}

func typeName(v interface{}) string {
	switch v.(type) {
	case missing:
		return "missing"
	case nil:
		return "null"
	case string:
		return "string"
	case bson.M:
		return "object"
	case bool:
		return "bool"
	}
	if _, ok := toFloat(v); ok {
		return "double"
	}
	return "unknown"
}

// sortDocs orders documents the way the store does for the values used in tests:
// missing < numbers < strings < objects
func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, aok := lookupPath(docs[i], k.Key)
			b, bok := lookupPath(docs[j], k.Key)
			c := compareValues(a, aok, b, bok)
			if c == 0 {
				continue
			}
			if k.Value.(int) < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func typeRank(v interface{}, present bool) int {
	if !present || v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	if _, ok := v.(string); ok {
		return 2
	}
	return 3
}

func compareValues(a interface{}, aok bool, b interface{}, bok bool) int {
	ra, rb := typeRank(a, aok), typeRank(b, bok)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case 2:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

// creatorDoc builds a raw creator document. Creator i has followers decreasing with
// i, so the default order lists creators by ascending i.
func creatorDoc(i int) bson.M {
	return bson.M{
		"_id":             fmt.Sprintf("c%03d", i),
		"username":        fmt.Sprintf("creator%03d", i),
		"platform":        "instagram",
		"primary_niche":   "Beauty",
		"followers_count": float64(100000 - i*10),
		"average_views":   float64(5000 + i),
		"engagement_rate": 3.5,
		"buzz_score":      float64(50 + i%50),
		"location":        "United States",
	}
}

func creatorDocs(n int) []bson.M {
	docs := make([]bson.M, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, creatorDoc(i))
	}
	return docs
}

func creatorIDs(creators []models.Creator) []string {
	ids := make([]string, len(creators))
	for i, c := range creators {
		ids[i] = c.ID
	}
	return ids
}

var errStoreDown = errors.New("store unavailable")
