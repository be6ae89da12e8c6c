// Command archfsutil inspects a bound archive image from the command line:
// list a directory, print a file's content, or print an entry's stat
// record, mirroring the subcommand-dispatch shape of the package manager
// this library's reader was adapted from.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/romfs/archfs"
)

func usage(fset *flag.FlagSet, help string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, help)
		fset.PrintDefaults()
	}
}

const lsHelp = `archfsutil ls [-flags] <image> [path]

List the children of a directory entry (the root if path is omitted).

Example:
  % archfsutil ls image.rofs etc
`

func cmdls(args []string) error {
	fset := flag.NewFlagSet("ls", flag.ExitOnError)
	fset.Usage = usage(fset, lsHelp)
	fset.Parse(args)
	rest := fset.Args()
	if len(rest) < 1 {
		fset.Usage()
		os.Exit(2)
	}
	img, err := bindFile(rest[0])
	if err != nil {
		return err
	}
	defer img.Release()

	path := ""
	if len(rest) > 1 {
		path = rest[1]
	}
	e, err := img.Resolve(path)
	if err != nil {
		return err
	}
	dh, err := img.OpenDir(&e)
	if err != nil {
		return err
	}
	defer dh.Close()
	for {
		child, err := dh.Read()
		if err == archfs.ErrEndOfDirectory {
			break
		}
		if err != nil {
			return err
		}
		name, err := img.Name(child)
		if err != nil {
			return err
		}
		suffix := ""
		if img.IsDir(child) {
			suffix = "/"
		}
		fmt.Println(name + suffix)
	}
	return nil
}

const catHelp = `archfsutil cat [-flags] <image> <path>

Print a file's decompressed content to stdout.

Example:
  % archfsutil cat image.rofs index.html
`

func cmdcat(args []string) error {
	fset := flag.NewFlagSet("cat", flag.ExitOnError)
	raw := fset.Bool("raw", false, "bypass decompression and print the stored bytes")
	fset.Usage = usage(fset, catHelp)
	fset.Parse(args)
	rest := fset.Args()
	if len(rest) != 2 {
		fset.Usage()
		os.Exit(2)
	}
	img, err := bindFile(rest[0])
	if err != nil {
		return err
	}
	defer img.Release()

	e, err := img.Resolve(rest[1])
	if err != nil {
		return err
	}
	var flags archfs.OpenFlags
	if *raw {
		flags = archfs.FlagRaw
	}
	f, err := img.Open(e, flags)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(os.Stdout, readerFunc(f.Read))
	return err
}

const statHelp = `archfsutil stat [-flags] <image> <path>

Print an entry's type, compression, and sizes.

Example:
  % archfsutil stat image.rofs big.txt
`

func cmdstat(args []string) error {
	fset := flag.NewFlagSet("stat", flag.ExitOnError)
	fset.Usage = usage(fset, statHelp)
	fset.Parse(args)
	rest := fset.Args()
	if len(rest) != 2 {
		fset.Usage()
		os.Exit(2)
	}
	img, err := bindFile(rest[0])
	if err != nil {
		return err
	}
	defer img.Release()

	e, err := img.Resolve(rest[1])
	if err != nil {
		return err
	}
	st, err := img.Stat(e)
	if err != nil {
		return err
	}
	fmt.Printf("type=%s compression=%s logical_size=%d compressed_size=%d\n",
		st.Type, st.Compression, st.LogicalSize, st.CompressedSize)
	return nil
}

func bindFile(path string) (*archfs.Image, error) {
	return archfs.Bind(archfs.Config{PartitionLabel: path})
}

// readerFunc adapts a Read method value to io.Reader, avoiding a throwaway
// wrapper type at each call site.
type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func funcmain() error {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "syntax: archfsutil <ls|cat|stat> [options] <image> [path]")
		os.Exit(2)
	}
	verb, rest := args[0], args[1:]

	verbs := map[string]func([]string) error{
		"ls":   cmdls,
		"cat":  cmdcat,
		"stat": cmdstat,
	}
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		os.Exit(2)
	}
	return v(rest)
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
