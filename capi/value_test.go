package capi_test

import (
	"github.com/bsm/bpx"
	"github.com/bsm/bpx/capi"
	"github.com/bsm/bpx/sd"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Value", func() {
	var subject *capi.Bridge

	BeforeEach(func() {
		subject = newBridge()
	})

	stringOf := func(v capi.Value) string {
		var n uint64
		mustStatus(subject.StringLen(v, &n))
		buf := make([]byte, n)
		mustStatus(subject.StringCopy(v, buf, nil))
		return string(buf)
	}

	It("should build scalars", func() {
		v := capi.Scalar(sd.TypeInt16, 0xffff)
		Expect(v.Type).To(Equal(sd.TypeInt16))
		Expect(int64(v.Data)).To(Equal(int64(-1)))

		Expect(capi.Scalar(sd.TypeArray, 1)).To(Equal(capi.Value{}))
		Expect(capi.NewFloat64(1.5).Type).To(Equal(sd.TypeFloat64))
		Expect(capi.NewFloat32(1.5).Data).To(Equal(uint64(0x3fc00000)))
	})

	It("should round-trip strings through memory", func() {
		v := subject.NewString([]byte("hello"))
		Expect(v.Type).To(Equal(sd.TypeString))

		var size uint64
		Expect(subject.EncodeMemory(v, nil, &size)).To(Equal(capi.StatusCapacity))
		Expect(size).To(Equal(uint64(7)))

		buf := make([]byte, size)
		mustStatus(subject.EncodeMemory(v, buf, &size))
		Expect(buf).To(Equal([]byte{0xB, 'h', 'e', 'l', 'l', 'o', 0}))

		var w capi.Value
		mustStatus(subject.DecodeMemory(buf, &w))
		Expect(w.Type).To(Equal(sd.TypeString))
		Expect(stringOf(w)).To(Equal("hello"))

		mustStatus(subject.Free(&v))
		mustStatus(subject.Free(&w))
	})

	It("should report decode errors", func() {
		var v capi.Value
		Expect(subject.DecodeMemory([]byte{0xB, 'h'}, &v)).To(Equal(capi.StatusSdTruncation))
		Expect(subject.DecodeMemory([]byte{0x42}, &v)).To(Equal(capi.StatusSdBadTypeCode))
		Expect(subject.DecodeMemory([]byte{0xB, 0xff, 0}, &v)).To(Equal(capi.StatusSdUtf8))
		Expect(v).To(Equal(capi.Value{}))
	})

	It("should treat a second free as a no-op", func() {
		v := subject.NewObject()
		alias := v

		mustStatus(subject.Free(&v))
		Expect(v).To(Equal(capi.Value{}))
		mustStatus(subject.Free(&v))

		Expect(subject.Free(&alias)).To(Equal(capi.StatusInvalidHandle))
		Expect(subject.ObjectLen(alias)).To(Equal(capi.SizeError))

		n := capi.Scalar(sd.TypeUint8, 1)
		mustStatus(subject.Free(&n))
		mustStatus(subject.Free(nil))
	})

	It("should manage arrays", func() {
		arr := subject.NewArray()
		defer subject.Free(&arr)

		for i := uint64(0); i < 3; i++ {
			v := capi.Scalar(sd.TypeUint32, i)
			mustStatus(subject.ArrayPush(arr, &v))
			Expect(v).To(Equal(capi.Value{}))
		}

		s := subject.NewString([]byte("mid"))
		mustStatus(subject.ArrayInsert(arr, &s, 1))
		Expect(s).To(Equal(capi.Value{}))
		Expect(subject.ArrayLen(arr)).To(Equal(uint64(4)))

		x := capi.Scalar(sd.TypeBool, 1)
		Expect(subject.ArrayInsert(arr, &x, 9)).To(Equal(capi.StatusIndexOutOfRange))
		Expect(x.Type).To(Equal(sd.TypeBool))

		var got capi.Value
		mustStatus(subject.ArrayGet(arr, 1, &got))
		Expect(stringOf(got)).To(Equal("mid"))
		mustStatus(subject.ArrayGet(arr, 3, &got))
		Expect(got).To(Equal(capi.Scalar(sd.TypeUint32, 2)))
		mustStatus(subject.ArrayGet(arr, 4, &got))
		Expect(got).To(Equal(capi.Value{}))

		mustStatus(subject.ArrayRemove(arr, 1))
		Expect(subject.ArrayRemove(arr, 3)).To(Equal(capi.StatusIndexOutOfRange))
		mustStatus(subject.ArrayGet(arr, 1, &got))
		Expect(got).To(Equal(capi.Scalar(sd.TypeUint32, 1)))

		dst := make([]capi.Value, 8)
		var n uint64
		mustStatus(subject.ArrayList(arr, dst, &n))
		Expect(n).To(Equal(uint64(3)))
		Expect(dst[:n]).To(Equal([]capi.Value{
			capi.Scalar(sd.TypeUint32, 0),
			capi.Scalar(sd.TypeUint32, 1),
			capi.Scalar(sd.TypeUint32, 2),
		}))

		obj := subject.NewObject()
		defer subject.Free(&obj)
		Expect(subject.ArrayLen(obj)).To(Equal(capi.SizeError))
		Expect(subject.ArrayPush(obj, &x)).To(Equal(capi.StatusTypeMismatch))
	})

	It("should return the same handle for aliases", func() {
		arr := subject.NewArray()
		defer subject.Free(&arr)

		inner := subject.NewObject()
		innerData := inner.Data
		mustStatus(subject.ArrayPush(arr, &inner))

		var a1, a2 capi.Value
		mustStatus(subject.ArrayGet(arr, 0, &a1))
		mustStatus(subject.ArrayGet(arr, 0, &a2))
		Expect(a1).To(Equal(a2))
		Expect(a1.Data).To(Equal(innerData))
	})

	It("should manage objects", func() {
		obj := subject.NewObject()
		defer subject.Free(&obj)

		v := subject.NewString([]byte("first"))
		mustStatus(subject.ObjectSet(obj, "key", &v))
		Expect(v).To(Equal(capi.Value{}))

		var got capi.Value
		mustStatus(subject.ObjectGet(obj, "key", &got))
		Expect(stringOf(got)).To(Equal("first"))

		var raw capi.Value
		mustStatus(subject.ObjectRawGet(obj, sd.Hash("key"), &raw))
		Expect(raw).To(Equal(got))

		v = subject.NewString([]byte("second"))
		mustStatus(subject.ObjectRawSet(obj, sd.Hash("key"), &v))
		Expect(subject.StringLen(got, nil)).To(Equal(capi.StatusInvalidHandle))
		Expect(subject.ObjectLen(obj)).To(Equal(uint64(1)))

		mustStatus(subject.ObjectGet(obj, "key", &got))
		Expect(stringOf(got)).To(Equal("second"))
		mustStatus(subject.ObjectGet(obj, "missing", &got))
		Expect(got).To(Equal(capi.Value{}))

		n := capi.Scalar(sd.TypeInt64, 42)
		mustStatus(subject.ObjectSet(obj, "num", &n))

		dst := make([]capi.Entry, 1)
		var cnt uint64
		mustStatus(subject.ObjectList(obj, dst, &cnt))
		Expect(cnt).To(Equal(uint64(1)))
		Expect(dst[0].Hash).To(Equal(sd.Hash("key")))

		arr := subject.NewArray()
		defer subject.Free(&arr)
		Expect(subject.ObjectGet(arr, "key", &got)).To(Equal(capi.StatusNotAnObject))
		Expect(subject.ObjectLen(arr)).To(Equal(capi.SizeError))
	})

	It("should list into empty buffers without aliasing", func() {
		arr := subject.NewArray()
		defer subject.Free(&arr)
		obj := subject.NewObject()
		defer subject.Free(&obj)

		for i := 0; i < 3; i++ {
			v := subject.NewArray()
			mustStatus(subject.ArrayPush(arr, &v))
			w := subject.NewArray()
			mustStatus(subject.ObjectRawSet(obj, uint64(i), &w))
		}
		Expect(subject.NumPayloads()).To(Equal(8))

		n := uint64(99)
		mustStatus(subject.ArrayList(arr, nil, &n))
		Expect(n).To(BeZero())
		n = 99
		mustStatus(subject.ObjectList(obj, nil, &n))
		Expect(n).To(BeZero())
		Expect(subject.NumPayloads()).To(Equal(8))

		Expect(subject.ArrayList(obj, nil, &n)).To(Equal(capi.StatusTypeMismatch))
		Expect(subject.ObjectList(arr, nil, &n)).To(Equal(capi.StatusNotAnObject))

		dst := make([]capi.Value, 2)
		mustStatus(subject.ArrayList(arr, dst, &n))
		Expect(n).To(Equal(uint64(2)))
	})

	It("should release nested handles with their root", func() {
		arr := subject.NewArray()
		for i := 0; i < 100; i++ {
			v := subject.NewString([]byte("item"))
			mustStatus(subject.ArrayPush(arr, &v))
		}

		obj := subject.NewObject()
		inner := subject.NewArray()
		mustStatus(subject.ObjectSet(obj, "inner", &inner))
		mustStatus(subject.ArrayPush(arr, &obj))
		Expect(subject.NumPayloads()).To(Equal(103))

		var got capi.Value
		for i := uint64(0); i < 101; i++ {
			mustStatus(subject.ArrayGet(arr, i, &got))
		}
		mustStatus(subject.ObjectGet(got, "inner", &got))
		Expect(got.Type).To(Equal(sd.TypeArray))

		dst := make([]capi.Value, 101)
		mustStatus(subject.ArrayList(arr, dst, nil))

		mustStatus(subject.Free(&arr))
		Expect(subject.NumPayloads()).To(BeZero())
		Expect(subject.ArrayLen(got)).To(Equal(capi.SizeError))
	})

	It("should release handles of replaced and removed values", func() {
		obj := subject.NewObject()
		arr := subject.NewArray()
		for i := 0; i < 3; i++ {
			v := subject.NewString([]byte("x"))
			mustStatus(subject.ArrayPush(arr, &v))
		}
		mustStatus(subject.ObjectSet(obj, "list", &arr))

		var list, child capi.Value
		mustStatus(subject.ObjectGet(obj, "list", &list))
		mustStatus(subject.ArrayGet(list, 0, &child))
		mustStatus(subject.ArrayRemove(list, 0))
		Expect(subject.StringLen(child, nil)).To(Equal(capi.StatusInvalidHandle))

		mustStatus(subject.ArrayGet(list, 0, &child))
		Expect(subject.ObjectSet(obj, "list", &child)).To(Equal(capi.StatusInvalidHandle))
		Expect(subject.ArrayLen(list)).To(Equal(uint64(2)))

		v := capi.Scalar(sd.TypeBool, 1)
		mustStatus(subject.ObjectSet(obj, "list", &v))
		Expect(subject.ArrayLen(list)).To(Equal(capi.SizeError))

		mustStatus(subject.Free(&obj))
		Expect(subject.NumPayloads()).To(BeZero())
	})

	It("should not move values into themselves", func() {
		arr := subject.NewArray()
		defer subject.Free(&arr)

		self := arr
		Expect(subject.ArrayPush(arr, &self)).To(Equal(capi.StatusInvalidHandle))
		Expect(self).To(Equal(arr))

		obj := subject.NewObject()
		mustStatus(subject.ArrayPush(arr, &obj))
		var nested capi.Value
		mustStatus(subject.ArrayGet(arr, 0, &nested))

		parent := arr
		Expect(subject.ObjectSet(nested, "up", &parent)).To(Equal(capi.StatusInvalidHandle))
		Expect(subject.ArrayInsert(arr, &parent, 0)).To(Equal(capi.StatusInvalidHandle))
		Expect(subject.ArrayLen(arr)).To(Equal(uint64(1)))
	})

	It("should refuse to encode values freed through an alias", func() {
		arr := subject.NewArray()
		defer subject.Free(&arr)

		s := subject.NewString([]byte("hello"))
		mustStatus(subject.ArrayPush(arr, &s))

		var alias capi.Value
		mustStatus(subject.ArrayGet(arr, 0, &alias))
		mustStatus(subject.Free(&alias))

		var size uint64
		Expect(subject.EncodeMemory(arr, make([]byte, 16), &size)).To(Equal(capi.StatusInvalidHandle))
		Expect(size).To(BeZero())
	})

	It("should encode into and decode from sections", func() {
		ms := new(memStream)

		var c capi.Handle
		mustStatus(subject.ContainerCreateStream(ms.Callbacks(), nil, &c))

		var sh uint32
		mustStatus(subject.ContainerCreateSection(c, &capi.SectionOptions{Type: bpx.TypeStructuredData, Flags: capi.FlagCrc32 | capi.FlagZlib | capi.FlagThreshold, Threshold: 1}, &sh))

		root := subject.NewObject()
		name := subject.NewString([]byte("bpx"))
		mustStatus(subject.ObjectSet(root, "name", &name))
		list := subject.NewArray()
		for _, b := range []uint64{1, 0} {
			v := capi.Scalar(sd.TypeBool, b)
			mustStatus(subject.ArrayPush(list, &v))
		}
		mustStatus(subject.ObjectSet(root, "flags", &list))

		var s capi.Handle
		var n uint64
		mustStatus(subject.SectionOpen(c, sh, &s))
		mustStatus(subject.EncodeSection(s, root, &n))
		Expect(subject.SectionSize(s)).To(Equal(n))
		mustStatus(subject.SectionClose(&s))
		mustStatus(subject.Free(&root))

		mustStatus(subject.ContainerSave(c))
		mustStatus(subject.ContainerClose(&c))

		mustStatus(subject.ContainerOpenStream(ms.Callbacks(), &c))
		defer subject.ContainerClose(&c)

		Expect(subject.ContainerFindSectionByType(c, bpx.TypeStructuredData, &sh)).To(BeTrue())
		mustStatus(subject.SectionLoad(c, sh, &s))

		var decoded capi.Value
		mustStatus(subject.DecodeSection(s, &decoded))
		defer subject.Free(&decoded)
		Expect(decoded.Type).To(Equal(sd.TypeObject))
		Expect(subject.ObjectLen(decoded)).To(Equal(uint64(2)))

		var got capi.Value
		mustStatus(subject.ObjectGet(decoded, "name", &got))
		Expect(stringOf(got)).To(Equal("bpx"))
		mustStatus(subject.ObjectGet(decoded, "flags", &got))
		Expect(subject.ArrayLen(got)).To(Equal(uint64(2)))

		Expect(subject.DecodeSection(s, &got)).To(Equal(capi.StatusSdTruncation))
	})
})
