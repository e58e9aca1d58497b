package query

import (
	"strings"
	"testing"
)

func mustParam(t *testing.T, column string, op Operator, value any) Parameter {
	t.Helper()
	p, err := NewParameter(column, op, value)
	if err != nil {
		t.Fatalf("NewParameter(%s): %v", column, err)
	}
	return p
}

func TestValidateColumnRejectsBadNames(t *testing.T) {
	bad := []string{"status; DROP TABLE tasks", "col name", "col'", "a/b", ""}
	for _, name := range bad {
		if err := ValidateColumn(name); err == nil {
			t.Errorf("ValidateColumn(%q) = nil, want error", name)
		}
	}
	good := []string{"status", "tasks.status", "task_review_id", "a1.b2"}
	for _, name := range good {
		if err := ValidateColumn(name); err != nil {
			t.Errorf("ValidateColumn(%q) = %v, want nil", name, err)
		}
	}
}

func TestInClauseEmptyCollapsesToNoOp(t *testing.T) {
	p := mustParam(t, "status", IN, []int{})
	b := NewBindings()
	if frag := p.SQL(b); frag != "" {
		t.Fatalf("empty IN rendered %q, want \"\"", frag)
	}
	if len(b.Args()) != 0 {
		t.Fatalf("expected no bound args, got %v", b.Args())
	}
}

func TestGroupSkipsNoOpPredicates(t *testing.T) {
	g := NewFilterGroup(AND,
		mustParam(t, "status", IN, []int{}),
		mustParam(t, "priority", EQ, 0),
	)
	b := NewBindings()
	frag := g.SQL(b)
	if !strings.Contains(frag, "priority = $1") {
		t.Fatalf("group SQL = %q, want it to contain priority = $1", frag)
	}
	if strings.Contains(frag, "AND") {
		t.Fatalf("group SQL = %q, single surviving predicate should not be AND-joined", frag)
	}
}

func TestConditionalGroupFalseProducesNothing(t *testing.T) {
	g := NewConditionalFilterGroup(AND, false, mustParam(t, "status", EQ, 0))
	b := NewBindings()
	if frag := g.SQL(b); frag != "" {
		t.Fatalf("disabled group rendered %q, want \"\"", frag)
	}
}

func TestEveryPlaceholderHasExactlyOneBinding(t *testing.T) {
	f := NewFilter(AND,
		NewFilterGroup(AND,
			mustParam(t, "status", IN, []int{0, 3}),
			mustParam(t, "priority", EQ, 1),
		),
		NewFilterGroup(OR,
			mustParam(t, "owner", LIKE, "%alice%"),
		),
	)
	q := New("SELECT * FROM tasks").WithFilter(f)
	sql, args := q.Build()

	if len(args) != 4 {
		t.Fatalf("args = %v, want 4 bound values (2 from IN, 1 each from priority/owner)", args)
	}
	for i := 1; i <= len(args); i++ {
		ph := "$" + string(rune('0'+i))
		if !strings.Contains(sql, ph) {
			t.Fatalf("sql %q missing placeholder %s", sql, ph)
		}
	}
}

func TestRepeatedBuildsAreStableModuloSalt(t *testing.T) {
	q := New("SELECT * FROM tasks").WithFilter(
		NewFilter(AND, NewFilterGroup(AND, mustParam(t, "status", EQ, 0))),
	)
	sql1, args1 := q.Build()
	sql2, args2 := q.Build()

	if sql1 != sql2 {
		t.Fatalf("sql differs between builds: %q vs %q", sql1, sql2)
	}
	if len(args1) != 1 || len(args2) != 1 || args1[0] != args2[0] {
		t.Fatalf("args differ between builds: %v vs %v", args1, args2)
	}
}

func TestForceBaseEmitsWhereTrue(t *testing.T) {
	q := New("SELECT * FROM tasks").WithForceBase(true)
	sql, _ := q.Build()
	if !strings.HasSuffix(sql, "WHERE TRUE") {
		t.Fatalf("sql = %q, want trailing WHERE TRUE", sql)
	}
}

func TestPagingNonPositiveLimitIsUnlimited(t *testing.T) {
	q := New("SELECT * FROM tasks").WithPaging(NewPaging(0, 0))
	sql, args := q.Build()
	if strings.Contains(sql, "LIMIT") {
		t.Fatalf("sql = %q, want no LIMIT for non-positive limit", sql)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want none", args)
	}
}

func TestPagingComputesOffset(t *testing.T) {
	q := New("SELECT * FROM tasks").WithPaging(NewPaging(20, 3))
	sql, args := q.Build()
	if !strings.Contains(sql, "LIMIT $1 OFFSET $2") {
		t.Fatalf("sql = %q, want LIMIT $1 OFFSET $2", sql)
	}
	if args[0] != 20 || args[1] != 60 {
		t.Fatalf("args = %v, want [20 60]", args)
	}
}

func TestOrderConsolidatesSharedDirection(t *testing.T) {
	o := NewOrder(
		OrderField{Name: "priority", Direction: DESC, IsColumn: true},
		OrderField{Name: "created_at", Direction: DESC, IsColumn: true},
	)
	if got := o.SQL(NewBindings()); got != "ORDER BY priority, created_at DESC" {
		t.Fatalf("order SQL = %q", got)
	}
}

func TestOrderPerFieldWhenMixed(t *testing.T) {
	o := NewOrder(
		OrderField{Name: "priority", Direction: DESC, IsColumn: true},
		OrderField{Name: "created_at", Direction: ASC, IsColumn: true},
	)
	if got := o.SQL(NewBindings()); got != "ORDER BY priority DESC, created_at ASC" {
		t.Fatalf("order SQL = %q", got)
	}
}

func TestSubQueryFilterSharesBindings(t *testing.T) {
	inner := New("SELECT task_id FROM task_review").WithFilter(
		NewFilter(AND, NewFilterGroup(AND, mustParam(t, "reviewed_by", EQ, 5))),
	)
	sqf, err := NewSubQueryFilter("id", inner, IN)
	if err != nil {
		t.Fatalf("NewSubQueryFilter: %v", err)
	}

	outer := New("SELECT * FROM tasks").WithFilter(
		NewFilter(AND, NewFilterGroup(AND, sqf, mustParam(t, "status", EQ, 0))),
	)
	sql, args := outer.Build()

	if !strings.Contains(sql, "id IN (SELECT task_id FROM task_review WHERE reviewed_by = $1)") {
		t.Fatalf("sql = %q", sql)
	}
	if !strings.Contains(sql, "status = $2") {
		t.Fatalf("sql = %q, want outer predicate as $2", sql)
	}
	if len(args) != 2 || args[0] != 5 || args[1] != 0 {
		t.Fatalf("args = %v, want [5 0]", args)
	}
}

func TestFuzzyPredicateBindsThreeTimes(t *testing.T) {
	pred, err := NewFuzzyPredicate("owner", "alice", 0, 0)
	if err != nil {
		t.Fatalf("NewFuzzyPredicate: %v", err)
	}
	b := NewBindings()
	frag := pred.SQL(b)
	if !strings.Contains(frag, "LEVENSHTEIN") || !strings.Contains(frag, "METAPHONE") || !strings.Contains(frag, "SOUNDEX") {
		t.Fatalf("fuzzy fragment missing a clause: %q", frag)
	}
	if len(b.Args()) != 3 {
		t.Fatalf("args = %v, want 3 bound copies of the search value", b.Args())
	}
}
