// Package vpk provides reading functionality for Valve VPK archives.
package vpk

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	signature = 0x55aa1234

	// dirArchive marks entries stored in the directory file after the tree.
	dirArchive = 0x7fff

	entryTerminator = 0xffff
)

// VPK errors.
var (
	ErrInvalidSignature   = errors.New("invalid VPK signature")
	ErrUnsupportedVersion = errors.New("unsupported VPK version")
	ErrCorruptTree        = errors.New("corrupt VPK directory tree")
	ErrNotFound           = errors.New("file not found in VPK")
)

// Header is the directory file header. The v2 fields are zero for v1.
type Header struct {
	Signature uint32
	Version   uint32
	TreeSize  uint32

	FileDataSectionSize   uint32
	ArchiveMD5SectionSize uint32
	OtherMD5SectionSize   uint32
	SignatureSectionSize  uint32
}

// Entry describes one file in the archive.
type Entry struct {
	Path         string
	CRC          uint32
	Preload      []byte
	ArchiveIndex uint16
	Offset       uint32
	Length       uint32
}

// Size returns the full file size including preload bytes.
func (e *Entry) Size() int {
	return len(e.Preload) + int(e.Length)
}

// Archive is an opened "<name>_dir.vpk" and its numbered data archives.
type Archive struct {
	dirPath  string
	base     string // path prefix for "<base>_NNN.vpk"
	header   Header
	dataBase int64 // start of embedded file data in the dir file
	entries  map[string]*Entry

	mu    sync.Mutex
	files map[uint16]*os.File
}

// Open opens a VPK directory file.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	a := &Archive{
		dirPath: path,
		base:    strings.TrimSuffix(path, "_dir.vpk"),
		entries: make(map[string]*Entry),
		files:   map[uint16]*os.File{dirArchive: file},
	}

	r := bufio.NewReader(file)
	if err := a.readHeader(r); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readTree(r); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading directory tree: %w", err)
	}
	return a, nil
}

// Close closes the directory file and any opened data archives.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for idx, f := range a.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.files, idx)
	}
	return firstErr
}

func (a *Archive) readHeader(r io.Reader) error {
	var v1 [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &v1); err != nil {
		return err
	}
	a.header.Signature, a.header.Version, a.header.TreeSize = v1[0], v1[1], v1[2]
	if a.header.Signature != signature {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidSignature, a.header.Signature)
	}

	headerSize := int64(12)
	switch a.header.Version {
	case 1:
	case 2:
		var v2 [4]uint32
		if err := binary.Read(r, binary.LittleEndian, &v2); err != nil {
			return err
		}
		a.header.FileDataSectionSize = v2[0]
		a.header.ArchiveMD5SectionSize = v2[1]
		a.header.OtherMD5SectionSize = v2[2]
		a.header.SignatureSectionSize = v2[3]
		headerSize = 28
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.header.Version)
	}
	a.dataBase = headerSize + int64(a.header.TreeSize)
	return nil
}

// readTree walks the extension / directory / file-name string tree.
func (a *Archive) readTree(r *bufio.Reader) error {
	for {
		ext, err := readString(r)
		if err != nil || ext == "" {
			return err
		}
		for {
			dir, err := readString(r)
			if err != nil {
				return err
			}
			if dir == "" {
				break
			}
			for {
				name, err := readString(r)
				if err != nil {
					return err
				}
				if name == "" {
					break
				}
				e, err := readEntry(r)
				if err != nil {
					return fmt.Errorf("%w: %s/%s.%s: %v", ErrCorruptTree, dir, name, ext, err)
				}
				e.Path = joinPath(dir, name, ext)
				a.entries[e.Path] = e
			}
		}
	}
}

func readString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", fmt.Errorf("%w: unterminated string", ErrCorruptTree)
	}
	return s[:len(s)-1], nil
}

func readEntry(r io.Reader) (*Entry, error) {
	var raw struct {
		CRC          uint32
		PreloadBytes uint16
		ArchiveIndex uint16
		Offset       uint32
		Length       uint32
		Terminator   uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	if raw.Terminator != entryTerminator {
		return nil, fmt.Errorf("bad terminator 0x%04x", raw.Terminator)
	}
	e := &Entry{
		CRC:          raw.CRC,
		ArchiveIndex: raw.ArchiveIndex,
		Offset:       raw.Offset,
		Length:       raw.Length,
	}
	if raw.PreloadBytes > 0 {
		e.Preload = make([]byte, raw.PreloadBytes)
		if _, err := io.ReadFull(r, e.Preload); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// joinPath builds "dir/name.ext"; a single space stands for the root.
func joinPath(dir, name, ext string) string {
	file := name
	if ext != " " {
		file += "." + ext
	}
	if dir == " " {
		return normalizePath(file)
	}
	return normalizePath(dir + "/" + file)
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for path := range a.entries {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.entries[normalizePath(path)]
	return ok
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.entries[normalizePath(path)]
	return e, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	e, ok := a.entries[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	out := make([]byte, e.Size())
	copy(out, e.Preload)
	if e.Length == 0 {
		return out, nil
	}

	f, err := a.dataFile(e.ArchiveIndex)
	if err != nil {
		return nil, err
	}
	ofs := int64(e.Offset)
	if e.ArchiveIndex == dirArchive {
		ofs += a.dataBase
	}
	if _, err := f.ReadAt(out[len(e.Preload):], ofs); err != nil {
		return nil, fmt.Errorf("reading %s from archive %d: %w", path, e.ArchiveIndex, err)
	}
	return out, nil
}

// dataFile opens "<base>_NNN.vpk" on first use.
func (a *Archive) dataFile(idx uint16) (*os.File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f, ok := a.files[idx]; ok {
		return f, nil
	}
	name := fmt.Sprintf("%s_%03d.vpk", a.base, idx)
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening data archive %s: %w", filepath.Base(name), err)
	}
	a.files[idx] = f
	return f, nil
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(strings.TrimPrefix(path, "/"))
}

// Build writes a single-file VPK (version 1, data after the tree) holding
// files. It is used to pack loose assets for tests and tooling.
func Build(files map[string][]byte) []byte {
	type item struct {
		dir, name string
		data      []byte
	}
	byExt := make(map[string][]item)
	for p, data := range files {
		p = normalizePath(p)
		dir, file := " ", p
		if i := strings.LastIndexByte(p, '/'); i >= 0 {
			dir, file = p[:i], p[i+1:]
		}
		ext := " "
		if i := strings.LastIndexByte(file, '.'); i >= 0 {
			file, ext = file[:i], file[i+1:]
		}
		byExt[ext] = append(byExt[ext], item{dir: dir, name: file, data: data})
	}

	exts := make([]string, 0, len(byExt))
	for ext := range byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	tree := new(bytes.Buffer)
	blob := new(bytes.Buffer)
	for _, ext := range exts {
		tree.WriteString(ext + "\x00")
		items := byExt[ext]
		sort.Slice(items, func(i, j int) bool { return items[i].dir+items[i].name < items[j].dir+items[j].name })
		for _, it := range items {
			// One directory node per file keeps the writer simple.
			tree.WriteString(it.dir + "\x00")
			tree.WriteString(it.name + "\x00")
			binary.Write(tree, binary.LittleEndian, uint32(0))
			binary.Write(tree, binary.LittleEndian, uint16(0))
			binary.Write(tree, binary.LittleEndian, uint16(dirArchive))
			binary.Write(tree, binary.LittleEndian, uint32(blob.Len()))
			binary.Write(tree, binary.LittleEndian, uint32(len(it.data)))
			binary.Write(tree, binary.LittleEndian, uint16(entryTerminator))
			blob.Write(it.data)
			tree.WriteString("\x00") // end of names in dir
		}
		tree.WriteString("\x00") // end of dirs in ext
	}
	tree.WriteString("\x00") // end of extensions

	out := new(bytes.Buffer)
	binary.Write(out, binary.LittleEndian, [3]uint32{signature, 1, uint32(tree.Len())})
	out.Write(tree.Bytes())
	out.Write(blob.Bytes())
	return out.Bytes()
}
