package pipeline_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/insts"
	"github.com/sarchlab/ripsim/timing/pipeline"
)

var _ = Describe("State", func() {
	var (
		st      *pipeline.State
		decoder *insts.Decoder
	)

	slot := func(pc uint32, word uint32) pipeline.Slot {
		inst, err := decoder.Decode(word)
		Expect(err).NotTo(HaveOccurred())
		return pipeline.Slot{Valid: true, PC: pc, Inst: inst, PredictedPC: pc + 4}
	}

	BeforeEach(func() {
		st = &pipeline.State{}
		decoder = insts.NewDecoder()
	})

	It("should start empty", func() {
		Expect(st.IsEmpty()).To(BeTrue())
	})

	It("should shift every slot one stage on push", func() {
		for i := uint32(0); i < 5; i++ {
			st.Push(slot(0x100+4*i, insts.ADDI(1, 0, int32(i))))
		}

		Expect(st.PC(pipeline.StageWB)).To(Equal(uint32(0x100)))
		Expect(st.PC(pipeline.StageMA)).To(Equal(uint32(0x104)))
		Expect(st.PC(pipeline.StageEX)).To(Equal(uint32(0x108)))
		Expect(st.PC(pipeline.StageDE)).To(Equal(uint32(0x10c)))
		Expect(st.PC(pipeline.StageIF)).To(Equal(uint32(0x110)))

		st.Push(pipeline.Slot{PC: 0x114})
		Expect(st.PC(pipeline.StageWB)).To(Equal(uint32(0x104)))
		Expect(st.Valid(pipeline.StageIF)).To(BeFalse())
	})

	It("should hold IF and DE and insert a bubble in EX on push back", func() {
		for i := uint32(0); i < 4; i++ {
			st.Push(slot(0x100+4*i, insts.ADDI(1, 0, int32(i))))
		}

		st.PushBack()

		Expect(st.PC(pipeline.StageIF)).To(Equal(uint32(0x10c)))
		Expect(st.PC(pipeline.StageDE)).To(Equal(uint32(0x108)))
		Expect(st.Valid(pipeline.StageEX)).To(BeFalse())
		Expect(st.PC(pipeline.StageMA)).To(Equal(uint32(0x104)))
		Expect(st.PC(pipeline.StageWB)).To(Equal(uint32(0x100)))
	})

	It("should keep the PC of an invalidated stage", func() {
		st.Push(slot(0x200, insts.ADDI(1, 0, 1)))

		st.Invalidate(pipeline.StageIF)

		Expect(st.IsEmpty()).To(BeTrue())
		Expect(st.PC(pipeline.StageIF)).To(Equal(uint32(0x200)))
	})

	It("should hand out a pending branch PC once", func() {
		_, ok := st.TakeBranchPC()
		Expect(ok).To(BeFalse())

		st.SetBranchPC(0x300)

		pc, ok := st.TakeBranchPC()
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint32(0x300)))

		_, ok = st.TakeBranchPC()
		Expect(ok).To(BeFalse())
	})

	It("should dump every stage", func() {
		st.Push(slot(0x80000000, 0x00500813))
		var buf bytes.Buffer

		st.Dump(&buf)

		Expect(buf.String()).To(ContainSubstring("IF 0x80000000: addi x16, x0, 5"))
		Expect(buf.String()).To(ContainSubstring("WB 0x00000000: -"))
	})

	It("should name stages", func() {
		Expect(pipeline.StageMA.String()).To(Equal("MA"))
		Expect(pipeline.Stage(9).String()).To(Equal("Stage(9)"))
	})
})
