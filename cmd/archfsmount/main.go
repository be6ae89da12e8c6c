// Command archfsmount exposes a bound archive image as a read-only FUSE
// file system, so its files can be opened with ordinary path-based tools
// instead of the library's Resolve/Open API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/romfs/archfs"
)

// never is used for FUSE expiration timestamps. The bound image is
// immutable and entries are stable for its lifetime, so the kernel can
// cache attributes and directory entries forever; there is no sentinel
// value meaning "forever" in the FUSE protocol itself, so a far-future
// time stands in for one.
var never = time.Now().Add(365 * 24 * time.Hour)

// archfsFS adapts one bound Image to fuseutil.FileSystem. Since there is
// only one image, an inode ID is just the Image's Entry offset, with the
// root entry remapped to fuseops.RootInodeID (the one fixed inode number
// the protocol requires).
type archfsFS struct {
	fuseutil.NotImplementedFileSystem

	img *archfs.Image
}

func (fs *archfsFS) toInode(e archfs.Entry) fuseops.InodeID {
	if e == fs.img.Root() {
		return fuseops.RootInodeID
	}
	return fuseops.InodeID(e)
}

func (fs *archfsFS) toEntry(id fuseops.InodeID) archfs.Entry {
	if id == fuseops.RootInodeID {
		return fs.img.Root()
	}
	return archfs.Entry(id)
}

func (fs *archfsFS) attributes(e archfs.Entry) (fuseops.InodeAttributes, error) {
	st, err := fs.img.Stat(e)
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	mode := os.FileMode(0444)
	if st.Type == archfs.EntryTypeDirectory {
		mode = os.ModeDir | 0555
	}
	return fuseops.InodeAttributes{
		Size:  uint64(st.LogicalSize),
		Nlink: 1,
		Mode:  mode,
	}, nil
}

func (fs *archfsFS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.Blocks = 1
	op.IoSize = 65536
	return nil
}

func (fs *archfsFS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never

	parent := fs.toEntry(op.Parent)
	dh, err := fs.img.OpenDir(&parent)
	if err != nil {
		return fuse.EIO
	}
	defer dh.Close()
	for {
		child, err := dh.Read()
		if err == archfs.ErrEndOfDirectory {
			return fuse.ENOENT
		}
		if err != nil {
			return fuse.EIO
		}
		name, err := fs.img.Name(child)
		if err != nil {
			return fuse.EIO
		}
		if name != op.Name {
			continue
		}
		attrs, err := fs.attributes(child)
		if err != nil {
			return fuse.EIO
		}
		op.Entry.Child = fs.toInode(child)
		op.Entry.Attributes = attrs
		return nil
	}
}

func (fs *archfsFS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	op.AttributesExpiration = never
	attrs, err := fs.attributes(fs.toEntry(op.Inode))
	if err != nil {
		return fuse.ENOENT
	}
	op.Attributes = attrs
	return nil
}

func (fs *archfsFS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	e := fs.toEntry(op.Inode)
	if !fs.img.IsDir(e) {
		return fuse.EIO
	}
	return nil // every directory may be opened; ReadDir reopens its own cursor
}

func (fs *archfsFS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	parent := fs.toEntry(op.Inode)
	dh, err := fs.img.OpenDir(&parent)
	if err != nil {
		return fuse.EIO
	}
	defer dh.Close()

	var entries []fuseutil.Dirent
	for {
		child, err := dh.Read()
		if err == archfs.ErrEndOfDirectory {
			break
		}
		if err != nil {
			return fuse.EIO
		}
		name, err := fs.img.Name(child)
		if err != nil {
			return fuse.EIO
		}
		typ := fuseutil.DT_File
		if fs.img.IsDir(child) {
			typ = fuseutil.DT_Directory
		}
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(entries) + 1),
			Inode:  fs.toInode(child),
			Name:   name,
			Type:   typ,
		})
	}

	if op.Offset > fuseops.DirOffset(len(entries)) {
		return fuse.EIO
	}
	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *archfsFS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	op.KeepPageCache = true // the image never changes underneath a mount
	return nil
}

func (fs *archfsFS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	e := fs.toEntry(op.Inode)
	f, err := fs.img.Open(e, 0)
	if err != nil {
		return fuse.EIO
	}
	defer f.Close()
	if _, err := f.Seek(op.Offset, archfs.SeekSet); err != nil {
		return fuse.EIO
	}
	n, err := f.Read(op.Dst)
	op.BytesRead = n
	if err != nil && !errors.Is(err, io.EOF) {
		return fuse.EIO
	}
	return nil
}

func (fs *archfsFS) Destroy() {
	fs.img.Release()
}

const mountHelp = `archfsmount [-flags] <image> <mountpoint>

Mount a bound archive image read-only at mountpoint using FUSE. Unmount
with fusermount -u <mountpoint> (or umount on non-Linux hosts).
`

func funcmain() error {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, mountHelp)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}
	imagePath, mountpoint := args[0], args[1]

	img, err := archfs.Bind(archfs.Config{PartitionLabel: imagePath})
	if err != nil {
		return fmt.Errorf("bind %s: %w", imagePath, err)
	}

	server := fuseutil.NewFileSystemServer(&archfsFS{img: img})
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		ReadOnly:    true,
		FSName:      "archfs",
		VolumeName:  "archfs",
		ErrorLogger: nil,
	})
	if err != nil {
		img.Release()
		return fmt.Errorf("mount %s: %w", mountpoint, err)
	}
	return mfs.Join(context.Background())
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
