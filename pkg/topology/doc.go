/*
Package topology provides the coordinate space that pipeline nodes live in.

An Address is a point (x, y, z) in a space of one to three dimensions; unused
dimensions stay at zero. A Map binds addresses and names to opaque handles:

	m, err := topology.NewMap[*Stage](2, 4, 8, 0)
	if err != nil {
		return err
	}
	addr, err := m.Add(stage, "decoder") // first free address in raster order
	at, err := m.AddAt(other, "", topology.Address{X: 1, Y: 3})

Addresses are allocated in raster order (x fastest, then y, then z) and are
never rebound. A name may refer to several addresses; the first binding wins
on lookup.

A Map is safe for concurrent use, but it is meant to be built first and read
afterwards.
*/
package topology
