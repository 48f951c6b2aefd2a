package pkgcore

// DataVersion identifies the entry-table/data-region layout. Only V0 (the
// layout this package implements) exists today; other values are carried
// through unchanged by HeaderFlags.DataVersion so a caller can still
// inspect the byte.
type DataVersion uint8

const DataVersionCurrent DataVersion = 0

// Architecture narrows an archive to a specific target, or leaves it
// independent.
type Architecture uint8

const (
	ArchIndependent Architecture = 0
	ArchX86_64      Architecture = 1
	ArchX86         Architecture = 2
	ArchAArch64     Architecture = 3
	ArchRiscV64     Architecture = 4
)

// Packaging selects the compression discipline of the data region.
type Packaging uint8

const (
	PackagingUncompressed Packaging = 0
	PackagingLZMA2        Packaging = 1
)

// HeaderFlags is the packed bitfield at Header.Flags: bits 0-7 DataVersion,
// bits 8-15 Architecture, bits 16-23 Packaging. Bits 24-31 are reserved and
// must be zero on write.
type HeaderFlags uint32

// NewHeaderFlags packs the three sub-fields into one bitfield.
func NewHeaderFlags(version DataVersion, arch Architecture, pkg Packaging) HeaderFlags {
	return HeaderFlags(uint32(version) | uint32(arch)<<8 | uint32(pkg)<<16)
}

func (f HeaderFlags) DataVersion() DataVersion {
	return DataVersion(f)
}

func (f HeaderFlags) Architecture() Architecture {
	return Architecture(f >> 8)
}

func (f HeaderFlags) Packaging() Packaging {
	return Packaging(f >> 16)
}
