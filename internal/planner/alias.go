package planner

import "strconv"

// Counter issues table aliases and parameter names for a single query
// structure tree. Every structure built for the same statement must share
// one Counter so that nested subqueries never collide.
type Counter struct {
	alias int
	param int
}

func NewCounter() *Counter {
	return &Counter{}
}

// NextAlias returns a fresh table alias: table0, table1, ...
func (c *Counter) NextAlias() string {
	a := "table" + strconv.Itoa(c.alias)
	c.alias++
	return a
}

// NextParam returns a fresh parameter name: param0, param1, ...
func (c *Counter) NextParam() string {
	p := "param" + strconv.Itoa(c.param)
	c.param++
	return p
}
