package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// ingestAll feeds chunks in order and collects every emitted frame.
func ingestAll(b *FrameBuffer, chunks ...[]byte) []Frame {
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, b.Ingest(c)...)
	}
	return frames
}

// splitAt cuts data at the given offsets.
func splitAt(data []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	return append(chunks, data[prev:])
}

var _ = Describe("FrameBuffer", func() {
	const stream = "data: {\"content\":\"Hel\"}\n\n" +
		": keep-alive\n\n" +
		"data: {\"content\":\"lo\"}\n\n" +
		"data: [DONE]\n\n"

	It("emits one frame per delimiter in order", func() {
		frames := NewFrameBuffer().Ingest([]byte(stream))

		Expect(frames).To(Equal([]Frame{
			`data: {"content":"Hel"}`,
			": keep-alive",
			`data: {"content":"lo"}`,
			"data: [DONE]",
		}))
	})

	// mixedEndings ends each line with a bare CR followed by a CRLF.
	const mixedEndings = "data: {\"content\":\"A\"}\r\r\n\r\r\n" +
		"data: {\"content\":\"B\"}\n\n"

	DescribeTable("produces the same frames for every two-way split",
		func(s string) {
			data := []byte(s)
			want := NewFrameBuffer().Ingest(data)

			for i := 0; i <= len(data); i++ {
				got := ingestAll(NewFrameBuffer(), splitAt(data, i)...)
				Expect(got).To(Equal(want), "split at %d", i)
			}
		},
		Entry("LF stream", stream),
		Entry("mixed CR and CRLF endings", mixedEndings),
	)

	DescribeTable("produces the same frames when fed one byte at a time",
		func(s string) {
			data := []byte(s)
			want := NewFrameBuffer().Ingest(data)

			b := NewFrameBuffer()
			var got []Frame
			for i := range data {
				got = append(got, b.Ingest(data[i:i+1])...)
			}
			Expect(got).To(Equal(want))
		},
		Entry("LF stream", stream),
		Entry("mixed CR and CRLF endings", mixedEndings),
	)

	It("treats a bare CR as a line ending", func() {
		frames := NewFrameBuffer().Ingest([]byte(mixedEndings))

		Expect(frames).To(Equal([]Frame{
			`data: {"content":"A"}`,
			"",
			`data: {"content":"B"}`,
		}))
	})

	It("holds a trailing CR until the next chunk", func() {
		b := NewFrameBuffer()

		Expect(b.Ingest([]byte("data: a\r"))).To(BeEmpty())
		Expect(b.Buffered()).To(Equal("data: a"))
		Expect(b.Ingest([]byte("\r\n"))).To(Equal([]Frame{"data: a"}))
	})

	It("holds a split multi-byte sequence instead of replacing it", func() {
		data := []byte("data: {\"content\":\"héllo 世界\"}\n\n")
		want := NewFrameBuffer().Ingest(data)
		Expect(want).To(HaveLen(1))
		Expect(string(want[0])).To(ContainSubstring("héllo 世界"))

		for i := 0; i <= len(data); i++ {
			for j := i; j <= len(data); j++ {
				got := ingestAll(NewFrameBuffer(), splitAt(data, i, j)...)
				Expect(got).To(Equal(want), "split at %d,%d", i, j)
			}
		}
	})

	It("emits nothing until a delimiter arrives", func() {
		b := NewFrameBuffer()

		Expect(b.Ingest([]byte("data: partial"))).To(BeEmpty())
		Expect(b.Buffered()).To(Equal("data: partial"))
		Expect(b.Ingest([]byte("\n"))).To(BeEmpty())
		Expect(b.Ingest([]byte("\n"))).To(Equal([]Frame{"data: partial"}))
		Expect(b.Buffered()).To(BeEmpty())
	})

	It("ignores empty chunks", func() {
		b := NewFrameBuffer()

		Expect(b.Ingest(nil)).To(BeNil())
		Expect(b.Ingest([]byte{})).To(BeNil())
	})

	It("folds CRLF line endings, including across chunks", func() {
		b := NewFrameBuffer()

		frames := ingestAll(b, []byte("data: a\r"), []byte("\n\r"), []byte("\ndata: b\r\n\r\n"))

		Expect(frames).To(Equal([]Frame{"data: a", "data: b"}))
	})

	It("emits empty frames for consecutive delimiters", func() {
		frames := NewFrameBuffer().Ingest([]byte("data: x\n\n\n\n"))

		Expect(frames).To(Equal([]Frame{"data: x", ""}))
	})

	Describe("Finalize", func() {
		It("discards the undelimited remainder by default", func() {
			b := NewFrameBuffer()
			b.Ingest([]byte("data: {\"content\":\"lost\"}"))

			frame, ok := b.Finalize()

			Expect(ok).To(BeFalse())
			Expect(frame).To(BeEmpty())
			Expect(b.Buffered()).To(BeEmpty())
		})

		It("returns the remainder in flush-on-close mode", func() {
			b := NewFrameBuffer(WithFlushOnClose(true))
			b.Ingest([]byte("data: {\"content\":\"kept\"}"))

			frame, ok := b.Finalize()

			Expect(ok).To(BeTrue())
			Expect(frame).To(Equal(Frame(`data: {"content":"kept"}`)))
		})

		It("returns nothing for a blank remainder in flush mode", func() {
			b := NewFrameBuffer(WithFlushOnClose(true))
			b.Ingest([]byte("data: x\n\n\n"))

			_, ok := b.Finalize()

			Expect(ok).To(BeFalse())
		})

		It("replaces a truncated multi-byte sequence in flush mode", func() {
			b := NewFrameBuffer(WithFlushOnClose(true))
			euro := []byte("€")
			b.Ingest(append([]byte("data: "), euro[:2]...))

			frame, ok := b.Finalize()

			Expect(ok).To(BeTrue())
			Expect(string(frame)).To(HavePrefix("data: "))
			Expect(string(frame)).To(ContainSubstring("�"))
		})

		It("leaves the buffer reusable", func() {
			b := NewFrameBuffer()
			b.Ingest([]byte("data: stale"))
			b.Finalize()

			Expect(b.Ingest([]byte("data: fresh\n\n"))).To(Equal([]Frame{"data: fresh"}))
		})
	})
})
