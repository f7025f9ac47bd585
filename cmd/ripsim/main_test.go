package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/insts"
)

var _ = Describe("ripsim", func() {
	var (
		tempDir     string
		programPath string
		stdout      *bytes.Buffer
		stderr      *bytes.Buffer
	)

	writeProgram := func(words ...uint32) {
		buf := make([]byte, 4*len(words))
		for i, w := range words {
			binary.LittleEndian.PutUint32(buf[4*i:], w)
		}
		Expect(os.WriteFile(programPath, buf, 0644)).To(Succeed())
	}

	runWith := func(stdin string, args ...string) int {
		return run(args, strings.NewReader(stdin), stdout, stderr)
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "ripsim-cli-test")
		Expect(err).NotTo(HaveOccurred())

		programPath = filepath.Join(tempDir, "prog.bin")
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}

		writeProgram(
			insts.ADDI(5, 0, 10),
			insts.ADDI(6, 0, 0),
			insts.RType(insts.OpADD, 6, 6, 5),
			insts.ADDI(5, 5, -1),
			insts.Branch(insts.OpBNE, 5, 0, -8),
		)
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should print usage without a program", func() {
		Expect(runWith("")).To(Equal(1))
		Expect(stderr.String()).To(ContainSubstring("Usage: ripsim"))
	})

	It("should run a program and print the registers", func() {
		Expect(runWith("", programPath)).To(Equal(0))

		Expect(stdout.String()).To(ContainSubstring("x4  0x00000000  x5  0x00000000  x6  0x00000037"))
		Expect(stdout.String()).To(ContainSubstring("Program: " + programPath))
		Expect(stdout.String()).NotTo(ContainSubstring("Total Cycles"))
	})

	It("should accept flags after the program", func() {
		Expect(runWith("", programPath, "-b", "gshare", "--stats")).To(Equal(0))

		Expect(stdout.String()).To(ContainSubstring("Total Instructions: 32"))
		Expect(stdout.String()).To(ContainSubstring("Branch Predictor:"))
	})

	It("should run the single-cycle engine", func() {
		Expect(runWith("", "--single-cycle", "--stats", programPath)).To(Equal(0))

		Expect(stdout.String()).To(ContainSubstring("Total Cycles: 32"))
		Expect(stdout.String()).To(ContainSubstring("CPI: 1.00"))
	})

	It("should honor the memory and address flags", func() {
		Expect(runWith("",
			"--dram-base=0", "--dram-size=0x1000", "--sp=800",
			"--end-address=0x8", "--stats", programPath)).To(Equal(0))

		Expect(stdout.String()).To(ContainSubstring("x0  0x00000000  x1  0x00000000  x2  0x00000800"))
		Expect(stdout.String()).To(ContainSubstring("Total Instructions: 2"))
	})

	It("should read a config file and let flags override it", func() {
		cfgPath := filepath.Join(tempDir, "run.yaml")
		Expect(os.WriteFile(cfgPath, []byte("predictor: onebit\nmax_cycles: 5\n"), 0644)).To(Succeed())

		Expect(runWith("", "--config", cfgPath, programPath)).To(Equal(1))
		Expect(stderr.String()).To(ContainSubstring("max cycles"))

		stderr.Reset()
		Expect(runWith("", "--config", cfgPath, "--max-cycles", "0", programPath)).To(Equal(0))
	})

	It("should dump every cycle in verbose mode", func() {
		Expect(runWith("", "-v", programPath)).To(Equal(0))

		Expect(stdout.String()).To(ContainSubstring("cycle 1 pc 0x80000004"))
		Expect(stdout.String()).To(ContainSubstring("IF 0x80000000: addi x5, x0, 10"))
	})

	DescribeTable("rejecting bad input",
		func(msg string, args []string) {
			Expect(runWith("", args...)).NotTo(BeZero())
			Expect(stderr.String()).To(ContainSubstring(msg))
		},
		Entry("bad predictor", "unknown branch predictor", []string{"-b", "perceptron", "prog"}),
		Entry("bad hex", "invalid hex address", []string{"--start-address", "xyz", "prog"}),
		Entry("missing file", "Error loading program", []string{"/nonexistent/prog.bin"}),
		Entry("bad log level", "not a valid logrus Level", []string{"--log-level", "loud", "prog"}),
	)

	It("should report undecodable words in strict mode", func() {
		writeProgram(insts.ADDI(5, 0, 1), 0x00000003)

		Expect(runWith("", "--strict", programPath)).To(Equal(1))
		Expect(stderr.String()).To(ContainSubstring("0x80000004"))
	})

	Describe("interactive mode", func() {
		It("should step and inspect", func() {
			code := runWith("s\ns 3\nr\np\nbogus\nq\n", "-i", programPath)

			Expect(code).To(Equal(0))
			out := stdout.String()
			Expect(out).To(ContainSubstring("cycle 1 pc 0x80000004"))
			Expect(out).To(ContainSubstring("cycle 4 pc 0x80000010"))
			Expect(out).To(ContainSubstring("DE 0x80000008: add x6, x6, x5"))
			Expect(out).To(ContainSubstring(`unknown command "bogus"`))
		})

		It("should continue to the end", func() {
			code := runWith("s 2\nc\n", "-i", programPath)

			Expect(code).To(Equal(0))
			Expect(stdout.String()).To(ContainSubstring("x6  0x00000037"))
		})

		It("should report the end of the program", func() {
			code := runWith("s 1000\ns\n", "-i", programPath)

			Expect(code).To(Equal(0))
			Expect(strings.Count(stdout.String(), "program finished")).To(Equal(2))
		})

		It("should not dump a pipeline for the single-cycle engine", func() {
			code := runWith("p\nq\n", "-i", "--single-cycle", programPath)

			Expect(code).To(Equal(0))
			Expect(stdout.String()).To(ContainSubstring("no pipeline"))
		})
	})
})
