/*
Package bpx contains a BPX container implementation: a sectioned binary
archive with a main header, per-section headers, checksums and optional
compression. The foreign-callable bridge lives in the capi package and
cmd/libbpx, the dynamic value model in sd and the pluggable I/O in stream.

Data Structure Documentation

Container

A container starts with a main header, followed by one header per section,
followed by the section payloads in header order.

    Container layout:
    +-------------+------------------+-------+------------------+-----------+-------+-----------+
    | main header | section header 0 |  ...  | section header n | section 0 |  ...  | section n |
    +-------------+------------------+-------+------------------+-----------+-------+-----------+

    Main header (40 bytes):
    +-------------------+-----------+-----------------+-------------------+---------------------+-----------------+--------------------------+
    | signature "BPX" 3 | type (1)  | checksum (4)    | file size (8)     | section count (4)   | version (4)     | type extension (16)      |
    +-------------------+-----------+-----------------+-------------------+---------------------+-----------------+--------------------------+

The main checksum is the weak checksum of the main header, with its
checksum field zeroed, followed by all section headers.

Section

    Section header (24 bytes):
    +-------------+-----------------------+-----------------------+--------------+----------+-----------+--------------+
    | pointer (8) | compressed size (4)   | size (4)              | checksum (4) | type (1) | flags (1) | reserved (2) |
    +-------------+-----------------------+-----------------------+--------------+----------+-----------+--------------+

Flags record how the payload was stored: the compression codec (zlib, xz or
snappy) and the checksum algorithm (weak or CRC32). Checksums cover the
uncompressed content. Payloads are only compressed when their size exceeds
the section's compression threshold.

Sections are loaded lazily. A loaded section is exposed as a seekable byte
stream; at most one accessor may be open per section at any time.
*/
package bpx
