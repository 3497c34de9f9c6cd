package modelq

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ToMD5 returns a deterministic fingerprint of the query's shape:
// expression, expand list, levels, flatten, silent and asArray all
// participate, so equal fingerprints mean equal result shapes. Caching
// hooks key on it.
func (q *Queryable) ToMD5() string {
	var b strings.Builder
	b.WriteString("query=")
	b.WriteString(q.q.String())

	names := make([]string, 0, len(q.expands))
	for _, e := range q.expands {
		name := e.Name
		if name == "" && e.Mapping != nil {
			name = e.Mapping.Identity()
		}
		if e.Options != nil {
			name += fmt.Sprintf("{select=%s,top=%d,levels=%d,order=%s}",
				strings.Join(e.Options.Select, "+"), e.Options.Top, e.Options.Levels, e.Options.Order)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString(";expand=")
	b.WriteString(strings.Join(names, ","))

	fmt.Fprintf(&b, ";levels=%d;flatten=%t;silent=%t;asArray=%t",
		q.levels, q.flatten, q.silent, q.asArray)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
