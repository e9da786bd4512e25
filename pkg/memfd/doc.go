// Package memfd 提供了 memfd（内存文件）的安全封装，用于创建、读写、映射和密封内存中的匿名文件。
//
// memfd 是只存在于内存中的匿名文件，没有文件系统路径。创建后可以通过 fork 继承，
// 也可以通过 Unix socket 发送给其他进程（见 pkg/unixsocket），再通过 mmap 作为共享内存使用。
//
// 使用 CreateOptions.WithAllowSealing(true) 创建的文件可以添加密封（seal）。
// 密封一旦添加就无法移除：SealWrite 禁止写入和共享可写映射，SealShrink 和 SealGrow 禁止改变大小，
// SealSeal 禁止继续添加密封。同时具有 SealWrite 和 SealShrink 的文件内容不会改变，
// 也不会因为被截短而在读取映射时触发 SIGBUS，所以可以安全地映射（见 MapImmutable）。
//
//	f, err := memfd.CreateSealable("foo")
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//	f.Write([]byte("Hello world!"))
//	f.AddSeals(memfd.NewSeals(memfd.SealWrite, memfd.SealShrink, memfd.SealGrow))
//
// 密封保存在内核中，同一文件的所有描述符（包括其他进程中的）看到的都是同一组密封，
// 因此 Seals 每次都向内核查询而不做缓存。
//
// 支持 Linux（内核 >= 3.17，SealFutureWrite 需要 >= 5.1）和 FreeBSD（>= 13）。
// Android 等平台的密封支持可能不完整，不支持的密封会在运行时返回 ErrOperationFailed。
package memfd
