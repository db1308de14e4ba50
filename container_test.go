package bpx_test

import (
	"bytes"
	"io"
	"math/rand"

	"github.com/bsm/bpx"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Container", func() {
	var backend *memBackend
	var subject *bpx.Container

	BeforeEach(func() {
		backend = new(memBackend)
		subject = bpx.Create(backend, &bpx.MainHeaderOptions{
			Type:    'P',
			TypeExt: [16]byte{1, 2, 3},
		}, nil)
	})

	AfterEach(func() {
		_ = subject.Close()
	})

	It("should create empty", func() {
		Expect(subject.NumSections()).To(Equal(0))
		Expect(subject.Save()).To(Succeed())
		Expect(backend.data).To(HaveLen(40))
		Expect(backend.flushes).To(Equal(1))

		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.MainHeader()).To(Equal(bpx.MainHeader{
			Signature: [3]byte{'B', 'P', 'X'},
			Type:      'P',
			Checksum:  subject.MainHeader().Checksum,
			FileSize:  40,
			Version:   bpx.CurrentVersion,
			TypeExt:   [16]byte{1, 2, 3},
		}))
	})

	It("should create sections", func() {
		h1, err := subject.CreateSection(&bpx.SectionOptions{Type: 1})
		Expect(err).NotTo(HaveOccurred())
		h2, err := subject.CreateSection(&bpx.SectionOptions{Type: 2, Checksum: bpx.Crc32Checksum})
		Expect(err).NotTo(HaveOccurred())
		h3, err := subject.CreateSection(&bpx.SectionOptions{Type: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(subject.NumSections()).To(Equal(3))
		Expect(subject.Sections()).To(Equal([]bpx.Handle{h1, h2, h3}))
		Expect(subject.MainHeader().SectionCount).To(Equal(uint32(3)))

		h, ok := subject.FindSectionByType(1)
		Expect(ok).To(BeTrue())
		Expect(h).To(Equal(h1))
		h, ok = subject.FindSectionByType(2)
		Expect(ok).To(BeTrue())
		Expect(h).To(Equal(h2))
		_, ok = subject.FindSectionByType(3)
		Expect(ok).To(BeFalse())

		h, ok = subject.FindSectionByIndex(2)
		Expect(ok).To(BeTrue())
		Expect(h).To(Equal(h3))
		_, ok = subject.FindSectionByIndex(3)
		Expect(ok).To(BeFalse())

		hdr, err := subject.SectionHeader(h2)
		Expect(err).NotTo(HaveOccurred())
		Expect(hdr.Type).To(Equal(uint8(2)))
		Expect(hdr.ChecksumAlgorithm()).To(Equal(bpx.Crc32Checksum))

		_, err = subject.SectionHeader(7)
		Expect(err).To(MatchError(bpx.ErrInvalidHandle))
	})

	It("should save and reopen", func() {
		backend, err := seedContainer(&bpx.SectionOptions{Type: 9, Checksum: bpx.WeakChecksum},
			[]byte("foo"), []byte(""), []byte("barbaz"))
		Expect(err).NotTo(HaveOccurred())
		Expect(backend.data).To(HaveLen(40 + 3*24 + 9))

		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		Expect(c.MainHeader().Type).To(Equal(uint8('T')))
		Expect(c.MainHeader().FileSize).To(Equal(uint64(len(backend.data))))
		Expect(c.NumSections()).To(Equal(3))

		hdr, err := c.SectionHeader(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(hdr).To(Equal(bpx.SectionHeader{
			Pointer:        40 + 3*24 + 3,
			CompressedSize: 6,
			Size:           6,
			Checksum:       uint32('b' + 'a' + 'r' + 'b' + 'a' + 'z'),
			Type:           9,
			Flags:          bpx.FlagCheckWeak,
		}))

		Expect(readAll(c, 0)).To(Equal([]byte("foo")))
		Expect(readAll(c, 1)).To(BeEmpty())
		Expect(readAll(c, 2)).To(Equal([]byte("barbaz")))
	})

	It("should preserve sections that were not loaded", func() {
		backend, err := seedContainer(&bpx.SectionOptions{Compression: bpx.ZlibCompression, Threshold: 1},
			[]byte("first section"), []byte("second section"))
		Expect(err).NotTo(HaveOccurred())

		backend = backend.reopen()
		c, err := bpx.Open(backend, nil)
		Expect(err).NotTo(HaveOccurred())

		s, err := c.Load(1)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.WriteAppend([]byte(", appended"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		h, err := c.CreateSection(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Save()).To(Succeed())
		Expect(c.Close()).To(Succeed())

		c, err = bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		Expect(c.NumSections()).To(Equal(3))
		Expect(readAll(c, 0)).To(Equal([]byte("first section")))
		Expect(readAll(c, 1)).To(Equal([]byte("second section, appended")))
		Expect(readAll(c, h)).To(BeEmpty())
	})

	It("should compress once above the threshold", func() {
		h, err := subject.CreateSection(&bpx.SectionOptions{Compression: bpx.ZlibCompression, Threshold: 64})
		Expect(err).NotTo(HaveOccurred())

		s, err := subject.Open(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Write(bytes.Repeat([]byte{'x'}, 64))
		Expect(err).NotTo(HaveOccurred())

		Expect(subject.Save()).To(Succeed())
		hdr, _ := subject.SectionHeader(h)
		Expect(hdr.Compression()).To(Equal(bpx.NoCompression))

		_, err = s.Write([]byte{'x'})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		Expect(subject.Save()).To(Succeed())
		hdr, _ = subject.SectionHeader(h)
		Expect(hdr.Compression()).To(Equal(bpx.ZlibCompression))
		Expect(hdr.Size).To(Equal(uint32(65)))
		Expect(hdr.CompressedSize).To(BeNumerically("<", 65))
	})

	It("should enforce section exclusivity", func() {
		h, err := subject.CreateSection(nil)
		Expect(err).NotTo(HaveOccurred())

		s1, err := subject.Load(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = subject.Load(h)
		Expect(err).To(MatchError(bpx.ErrSectionInUse))
		_, err = subject.Open(h)
		Expect(err).To(MatchError(bpx.ErrSectionInUse))

		Expect(s1.Close()).To(Succeed())
		Expect(s1.Close()).To(Succeed())

		s2, err := subject.Open(h)
		Expect(err).NotTo(HaveOccurred())
		Expect(s2.Close()).To(Succeed())
	})

	It("should only open resident sections", func() {
		backend, err := seedContainer(nil, []byte("data"))
		Expect(err).NotTo(HaveOccurred())

		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		_, err = c.Open(0)
		Expect(err).To(MatchError(bpx.ErrSectionNotLoaded))

		// a failed open must not leave the section in use
		s, err := c.Load(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		s, err = c.Open(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Size()).To(Equal(int64(4)))
		Expect(s.Close()).To(Succeed())
	})

	It("should reject bad signatures", func() {
		backend, err := seedContainer(nil)
		Expect(err).NotTo(HaveOccurred())

		backend.data[0] = 'X'
		_, err = bpx.Open(backend.reopen(), nil)
		Expect(err).To(MatchError(bpx.ErrBadSignature))
	})

	It("should reject unknown versions", func() {
		c := bpx.Create(backend, &bpx.MainHeaderOptions{Version: 3}, nil)
		Expect(c.Save()).To(Succeed())

		_, err := bpx.Open(backend.reopen(), nil)
		Expect(err).To(MatchError(bpx.ErrBadVersion))
	})

	It("should verify the main checksum", func() {
		backend, err := seedContainer(nil, []byte("data"))
		Expect(err).NotTo(HaveOccurred())

		backend.data[40+20]++ // section type
		_, err = bpx.Open(backend.reopen(), nil)
		Expect(err).To(BeAssignableToTypeOf(&bpx.ChecksumError{}))
	})

	It("should verify section checksums", func() {
		backend, err := seedContainer(&bpx.SectionOptions{Checksum: bpx.Crc32Checksum}, []byte("data"))
		Expect(err).NotTo(HaveOccurred())

		backend.data[len(backend.data)-1] = 'A'
		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		_, err = c.Load(0)
		Expect(err).To(BeAssignableToTypeOf(&bpx.ChecksumError{}))

		// a failed load releases the section
		_, err = c.Load(0)
		Expect(err).To(BeAssignableToTypeOf(&bpx.ChecksumError{}))
	})

	It("should report corrupt payloads", func() {
		payload := bytes.Repeat([]byte("corrupt me "), 20)
		backend, err := seedContainer(&bpx.SectionOptions{Compression: bpx.ZlibCompression, Threshold: 1}, payload)
		Expect(err).NotTo(HaveOccurred())

		for i := 40 + 24 + 2; i < len(backend.data); i++ {
			backend.data[i] ^= 0x55
		}
		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		_, err = c.Load(0)
		Expect(err).To(BeAssignableToTypeOf(&bpx.CodecError{}))
		Expect(err.(*bpx.CodecError).Op).To(Equal("inflate"))
	})

	It("should bound payloads by the backend size", func() {
		backend, err := seedContainer(nil, []byte("first"), []byte("second"))
		Expect(err).NotTo(HaveOccurred())

		backend.data = backend.data[:len(backend.data)-3]
		c, err := bpx.Open(backend.reopen(), nil)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		Expect(readAll(c, 0)).To(Equal([]byte("first")))
		_, err = c.Load(1)
		Expect(err).To(MatchError(bpx.ErrCapacity))
	})

	table.DescribeTable("should stay consistent when saving fails",
		func(failAt int, loadBeforeRetry bool) {
			seeded, err := seedContainer(&bpx.SectionOptions{Checksum: bpx.Crc32Checksum}, []byte("first"), []byte("second"))
			Expect(err).NotTo(HaveOccurred())

			flaky := &flakyBackend{memBackend: seeded.reopen(), failAt: failAt}
			c, err := bpx.Open(flaky, nil)
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			s, err := c.Load(0)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Seek(0, io.SeekEnd)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Write(bytes.Repeat([]byte("x"), 100))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			mh := c.MainHeader()
			sh, err := c.SectionHeader(1)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Save()).To(MatchError(errDiskFull))
			Expect(c.MainHeader()).To(Equal(mh))
			Expect(c.SectionHeader(1)).To(Equal(sh))
			if loadBeforeRetry {
				Expect(readAll(c, 1)).To(Equal([]byte("second")))
			}
			Expect(c.Save()).To(Succeed())

			reopened, err := bpx.Open(flaky.memBackend.reopen(), nil)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			Expect(reopened.NumSections()).To(Equal(2))
			Expect(readAll(reopened, 0)).To(Equal(append([]byte("first"), bytes.Repeat([]byte("x"), 100)...)))
			Expect(readAll(reopened, 1)).To(Equal([]byte("second")))
		},
		table.Entry("headers not written", 1, true),
		table.Entry("payload not written", 2, true),
		table.Entry("payload not written, not reloaded", 2, false),
	)

	It("should close", func() {
		h, err := subject.CreateSection(nil)
		Expect(err).NotTo(HaveOccurred())
		s, err := subject.Open(h)
		Expect(err).NotTo(HaveOccurred())

		Expect(subject.Close()).To(Succeed())
		Expect(subject.Close()).To(MatchError(bpx.ErrClosed))
		Expect(subject.Save()).To(MatchError(bpx.ErrClosed))
		_, err = subject.Load(h)
		Expect(err).To(MatchError(bpx.ErrClosed))
		_, err = s.Write([]byte("x"))
		Expect(err).To(MatchError(bpx.ErrClosed))
	})

	table.DescribeTable("should round-trip with compression",
		func(comp bpx.Compression, chk bpx.Checksum) {
			rnd := rand.New(rand.NewSource(1))
			random := make([]byte, 4096)
			_, _ = rnd.Read(random)
			repetitive := bytes.Repeat([]byte("testdata"), 4096)

			backend, err := seedContainer(&bpx.SectionOptions{
				Checksum:    chk,
				Compression: comp,
				Threshold:   128,
			}, random, repetitive, []byte("short"))
			Expect(err).NotTo(HaveOccurred())

			c, err := bpx.Open(backend.reopen(), nil)
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			for i, exp := range [][]byte{random, repetitive, []byte("short")} {
				hdr, err := c.SectionHeader(bpx.Handle(i))
				Expect(err).NotTo(HaveOccurred())
				Expect(hdr.ChecksumAlgorithm()).To(Equal(chk))
				Expect(hdr.Size).To(Equal(uint32(len(exp))))
				Expect(readAll(c, bpx.Handle(i))).To(Equal(exp), "section %d", i)
			}

			hdr, _ := c.SectionHeader(1)
			Expect(hdr.Compression()).To(Equal(comp))
			if comp != bpx.NoCompression {
				Expect(hdr.CompressedSize).To(BeNumerically("<", hdr.Size/4))
			}

			hdr, _ = c.SectionHeader(2)
			Expect(hdr.Compression()).To(Equal(bpx.NoCompression))
		},
		table.Entry("plain", bpx.NoCompression, bpx.NoChecksum),
		table.Entry("zlib", bpx.ZlibCompression, bpx.Crc32Checksum),
		table.Entry("xz", bpx.XzCompression, bpx.WeakChecksum),
		table.Entry("snappy", bpx.SnappyCompression, bpx.Crc32Checksum),
	)
})
