package vpk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestBuildAndRead(t *testing.T) {
	files := map[string][]byte{
		"materials/brick/wall01.vmt": []byte(`"LightmappedGeneric" { "$basetexture" "brick/wall01" }`),
		"materials/tile/floor.vmt":   []byte(`"LightmappedGeneric" {}`),
		"README":                     []byte("root file without extension"),
	}
	path := filepath.Join(t.TempDir(), "pak01_dir.vpk")
	writeFile(t, path, Build(files))

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	list := a.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 files, got %v", list)
	}
	if list[0] != "materials/brick/wall01.vmt" || list[2] != "readme" {
		t.Errorf("unexpected listing: %v", list)
	}

	for name, want := range files {
		got, err := a.Read(name)
		if err != nil {
			t.Errorf("Read(%q) failed: %v", name, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Read(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContainsNormalizesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pak01_dir.vpk")
	writeFile(t, path, Build(map[string][]byte{"materials/a.vmt": {1}}))

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	for _, p := range []string{"materials/a.vmt", "MATERIALS\\A.VMT", "/materials/a.vmt"} {
		if !a.Contains(p) {
			t.Errorf("Contains(%q) = false", p)
		}
	}
	if a.Contains("materials/b.vmt") {
		t.Error("Contains reported a missing file")
	}
	if _, err := a.Read("materials/b.vmt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// createVersion2 writes a v2 directory with one preloaded entry whose
// remaining bytes live in archive 000.
func createVersion2(t *testing.T, dir string) string {
	t.Helper()

	tree := new(bytes.Buffer)
	tree.WriteString("vmt\x00materials/sky\x00day01\x00")
	binary.Write(tree, binary.LittleEndian, uint32(0xdeadbeef))
	binary.Write(tree, binary.LittleEndian, uint16(3)) // preload
	binary.Write(tree, binary.LittleEndian, uint16(0)) // archive 000
	binary.Write(tree, binary.LittleEndian, uint32(4)) // offset
	binary.Write(tree, binary.LittleEndian, uint32(5)) // length
	binary.Write(tree, binary.LittleEndian, uint16(entryTerminator))
	tree.WriteString("abc")
	tree.WriteString("\x00\x00\x00")

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, [7]uint32{signature, 2, uint32(tree.Len()), 0, 0, 0, 0})
	buf.Write(tree.Bytes())

	path := filepath.Join(dir, "test_dir.vpk")
	writeFile(t, path, buf.Bytes())
	writeFile(t, filepath.Join(dir, "test_000.vpk"), []byte("....defgh...."))
	return path
}

func TestVersion2ExternalArchive(t *testing.T) {
	a, err := Open(createVersion2(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	e, ok := a.Stat("materials/sky/day01.vmt")
	if !ok {
		t.Fatal("entry not found")
	}
	if e.CRC != 0xdeadbeef || e.Size() != 8 {
		t.Errorf("unexpected entry: %+v", e)
	}

	data, err := a.Read("materials/sky/day01.vmt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "abcdefgh" {
		t.Errorf("expected abcdefgh, got %q", data)
	}
}

func TestMissingDataArchive(t *testing.T) {
	dir := t.TempDir()
	path := createVersion2(t, dir)
	os.Remove(filepath.Join(dir, "test_000.vpk"))

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Read("materials/sky/day01.vmt"); err == nil {
		t.Error("expected error for missing data archive")
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	badSig := filepath.Join(dir, "sig_dir.vpk")
	writeFile(t, badSig, make([]byte, 12))
	if _, err := Open(badSig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	badVer := filepath.Join(dir, "ver_dir.vpk")
	hdr := new(bytes.Buffer)
	binary.Write(hdr, binary.LittleEndian, [3]uint32{signature, 3, 0})
	writeFile(t, badVer, hdr.Bytes())
	if _, err := Open(badVer); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}

	truncated := filepath.Join(dir, "cut_dir.vpk")
	full := Build(map[string][]byte{"a/b.txt": []byte("x")})
	writeFile(t, truncated, full[:20])
	if _, err := Open(truncated); !errors.Is(err, ErrCorruptTree) {
		t.Errorf("expected ErrCorruptTree, got %v", err)
	}

	if _, err := Open(filepath.Join(dir, "missing_dir.vpk")); err == nil {
		t.Error("expected error for missing file")
	}
}
