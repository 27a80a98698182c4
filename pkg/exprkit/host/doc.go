/*
Package host describes the host values that expressions navigate.

# Values

Every value an expression touches is seen through the Value interface:

	Member(name)   field or property read
	Index(key)     map or list element read
	Methods(name)  overload set with declared parameter types

Maps, slices, strings and structs are adapted automatically by Of. Structs
expose exported fields by exact or capitalised name, then zero-argument
getters (`name`, `Name`, `GetName`, `IsName`). Implement Value directly to
control exactly what an expression can reach.

# Overloads

A Func declares its parameter types. Select chooses the most specific
overload for a call:

	exact type        4 per argument
	interface match   3
	numeric widening  2
	any parameter     1

The highest total wins and declaration order breaks ties. Two tied
overloads with identical parameter lists are reported as ErrAmbiguous.

# Types

A Type names a host type for casts, instanceof, constructors and static
members. DefaultTypes holds the built-in set:

	lang.String lang.Integer lang.Double lang.Boolean lang.Number
	lang.Object lang.Math math.BigDecimal math.BigInteger util.List util.Map

Extend a clone of it with application types:

	types := host.DefaultTypes().Clone()
	types.Register(&host.Type{
	    Name:   "app.Order",
	    GoType: reflect.TypeOf(&Order{}),
	    Funcs: map[string][]*host.Func{
	        "priority": {host.MustFunc("priority", OrderPriority)},
	    },
	})
*/
package host
