package sd_test

import (
	"math"

	"github.com/bsm/bpx/sd"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Value", func() {
	var rc *releaseCounter

	BeforeEach(func() {
		rc = trackReleases()
	})

	AfterEach(func() {
		rc.restore()
	})

	It("should default to null", func() {
		var v sd.Value
		Expect(v.Type()).To(Equal(sd.TypeNull))
		Expect(v.IsNull()).To(BeTrue())
		Expect(v.Payload()).To(BeNil())
		Expect(v.String()).To(Equal("null"))
	})

	It("should construct scalars", func() {
		Expect(sd.NewBool(true).Bool()).To(BeTrue())
		Expect(sd.NewUint16(512).Uint64()).To(Equal(uint64(512)))
		Expect(sd.NewInt8(-3).Int64()).To(Equal(int64(-3)))
		Expect(sd.NewInt64(math.MinInt64).Int64()).To(Equal(int64(math.MinInt64)))
		Expect(sd.NewFloat32(1.5).Float32()).To(Equal(float32(1.5)))
		Expect(sd.NewFloat64(-2.25).Float64()).To(Equal(-2.25))

		Expect(sd.NewInt8(-3).Uint64()).To(BeZero())
		Expect(sd.NewBool(true).Uint64()).To(BeZero())
		Expect(sd.NewUint8(3).Int64()).To(BeZero())
	})

	It("should construct scalars from raw bits", func() {
		Expect(sd.NewScalar(sd.TypeInt8, 0xff).Int64()).To(Equal(int64(-1)))
		Expect(sd.NewScalar(sd.TypeInt16, 0x18000).Int64()).To(Equal(int64(math.MinInt16)))
		Expect(sd.NewScalar(sd.TypeUint8, 0x1ff).Uint64()).To(Equal(uint64(0xff)))
		Expect(sd.NewScalar(sd.TypeBool, 7).Bits()).To(Equal(uint64(1)))
		Expect(sd.NewScalar(sd.TypeNull, 7).Bits()).To(BeZero())
		Expect(sd.NewScalar(sd.TypeString, 1).IsNull()).To(BeTrue())

		f := sd.NewFloat32(3.25)
		Expect(sd.NewScalar(sd.TypeFloat32, f.Bits()).Float32()).To(Equal(float32(3.25)))
	})

	It("should free strings", func() {
		v := sd.NewString("hello")
		p := v.Payload()
		Expect(v.String()).To(Equal("hello"))
		Expect(p.Released()).To(BeFalse())

		v.Free()
		Expect(v.IsNull()).To(BeTrue())
		Expect(p.Released()).To(BeTrue())
		Expect(rc.Count(p)).To(Equal(1))
	})

	It("should treat a second free as a no-op", func() {
		v := seedTree()
		alias := v

		v.Free()
		Expect(rc.Total()).To(Equal(5))
		Expect(func() { v.Free() }).NotTo(Panic())
		Expect(func() { alias.Free() }).NotTo(Panic())
		Expect(rc.Total()).To(Equal(5))
		Expect(alias.IsNull()).To(BeTrue())
	})

	It("should not free scalars", func() {
		v := sd.NewUint32(8)
		v.Free()
		Expect(v.IsNull()).To(BeTrue())
		Expect(rc.Total()).To(BeZero())
	})

	It("should move ownership", func() {
		v := sd.NewString("x")
		p := v.Payload()

		w := v.Take()
		Expect(v.IsNull()).To(BeTrue())
		Expect(v.Payload()).To(BeNil())
		Expect(w.Payload()).To(BeIdenticalTo(p))

		v.Free()
		Expect(p.Released()).To(BeFalse())

		w.Reset()
		Expect(w.IsNull()).To(BeTrue())
		Expect(p.Released()).To(BeFalse())
	})

	It("should wrap payloads", func() {
		arr := sd.NewArray()
		alias := sd.FromPayload(arr.Payload())
		Expect(alias.Type()).To(Equal(sd.TypeArray))
		Expect(alias.Array()).To(BeIdenticalTo(arr.Array()))
		Expect(sd.FromPayload(nil).IsNull()).To(BeTrue())
		arr.Free()
	})

	It("should compare deeply", func() {
		a, b := seedTree(), seedTree()
		defer a.Free()
		defer b.Free()

		Expect(a.Equal(b)).To(BeTrue())
		Expect(a.Equal(sd.NewObject())).To(BeFalse())
		Expect(sd.NewInt8(1).Equal(sd.NewUint8(1))).To(BeFalse())

		n := sd.NewUint8(9)
		b.Object().Set("c", &n)
		Expect(a.Equal(b)).To(BeFalse())
	})

	It("should describe types", func() {
		Expect(sd.TypeObject.String()).To(Equal("object"))
		Expect(sd.Type(99).String()).To(Equal("unknown(99)"))
		Expect(sd.Type(99).Valid()).To(BeFalse())
		Expect(sd.TypeFloat64.IsScalar()).To(BeTrue())
		Expect(sd.TypeString.IsScalar()).To(BeFalse())
	})
})
