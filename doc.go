/*
Package divaspr extracts sprites from Project DIVA style FARC archives.

A FARC archive (FARC, FArC or FArc signature) holds named entries, gzip
compressed in the first two forms. One entry is a sprite set: a TXP texture
set (textures with mip levels, DXT1/DXT5 or raw pixels) plus a table of named
sprite rectangles. Sprite sets carry no byte order flag; it is detected by a
trial parse in both orders.

The package focuses on the export workflow: parse the archive, parse the
sprite set, decode each referenced texture once (vertically flipped into a
top-left origin), crop every sprite and write it as PNG, TIFF or EDDS.
Structural errors abort; broken entries, textures and sprites are skipped
and reported.

Standalone TXP files and TXP blocks embedded in other data can be parsed
with ParseTXP and ScanTXPBlocks and dumped as raw subtexture blobs.
*/
package divaspr
