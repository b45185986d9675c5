// Command pageinfo opens a relcore database file read-only and prints
// its meta page, table directory, and the on-disk size/alignment of
// the core page structs. It is a debugging aid, not a query tool.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"relcore/catalog"
	"relcore/pager"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: pageinfo <database-file>")
		os.Exit(1)
	}

	p, err := pager.Open(os.Args[1], true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pageinfo:", err)
		os.Exit(1)
	}
	defer p.Close()

	meta := p.Meta()
	fmt.Printf("magic: %s  pages: %d  free-list head: %d  tables: %d\n",
		meta.Magic, p.PageCount(), meta.FirstFree, meta.TableNum)

	cat := catalog.New(p)
	for i := 0; i < int(meta.TableNum); i++ {
		ti := meta.Tables[i]
		name := ti.GetName()
		tp, err := cat.GetTablePage(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pageinfo: %s: %v\n", name, err)
			continue
		}
		rows := cat.RecordIter(tp)
		fmt.Printf("  %-32s cols=%-3d row-size=%-5d cap/page=%-5d rows=%d\n",
			name, tp.ColNum, tp.Size, tp.Cap, len(rows))
	}

	fmt.Println("struct layout:")
	fmt.Printf("  pager.MetaPage     align=%d size=%d\n", unsafe.Alignof(pager.MetaPage{}), unsafe.Sizeof(pager.MetaPage{}))
	fmt.Printf("  catalog.TablePage  align=%d size=%d\n", unsafe.Alignof(catalog.TablePage{}), unsafe.Sizeof(catalog.TablePage{}))
	fmt.Printf("  catalog.DataPage   align=%d size=%d\n", unsafe.Alignof(catalog.DataPage{}), unsafe.Sizeof(catalog.DataPage{}))
	fmt.Printf("  catalog.IndexPage  align=%d size=%d\n", unsafe.Alignof(catalog.IndexPage{}), unsafe.Sizeof(catalog.IndexPage{}))
}
